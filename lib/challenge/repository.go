package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nozmo-king/chorum/lib/store"
)

// Repository keeps challenges and their one-time claims in a store.
type Repository struct {
	challenges *store.JSON[Challenge]
	claims     *store.JSON[Claim]
}

// Claim marks a challenge as consumed by a commit.
type Claim struct {
	ChallengeID string    `json:"challenge_id"`
	Digest      string    `json:"digest"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

func NewRepository(s store.Interface) *Repository {
	return &Repository{
		challenges: &store.JSON[Challenge]{Underlying: s, Prefix: "challenge"},
		claims:     &store.JSON[Claim]{Underlying: s, Prefix: "claim"},
	}
}

// Create stores a new challenge for retention. Challenge ids are never
// reused.
func (r *Repository) Create(ctx context.Context, c Challenge, retention time.Duration) error {
	if err := r.challenges.Add(ctx, c.ID, c, retention); err != nil {
		return fmt.Errorf("can't store challenge %s: %w", c.ID, err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Challenge, error) {
	c, err := r.challenges.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("can't load challenge %s: %w", id, err)
	}
	return &c, nil
}

// Claim consumes the challenge. Exactly one caller succeeds per challenge;
// the rest get ErrSpent.
func (r *Repository) Claim(ctx context.Context, cl Claim, retention time.Duration) error {
	err := r.claims.Add(ctx, cl.ChallengeID, cl, retention)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrExists):
		return fmt.Errorf("%w: %s", ErrSpent, cl.ChallengeID)
	default:
		return fmt.Errorf("can't claim challenge %s: %w", cl.ChallengeID, err)
	}
}

// Release undoes a claim so the challenge can be committed again.
func (r *Repository) Release(ctx context.Context, id string) error {
	if err := r.claims.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("can't release claim on %s: %w", id, err)
	}
	return nil
}

// Claimed returns the claim on a challenge, if any.
func (r *Repository) Claimed(ctx context.Context, id string) (*Claim, error) {
	cl, err := r.claims.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't load claim on %s: %w", id, err)
	}
	return &cl, nil
}
