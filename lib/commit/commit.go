// Package commit keeps the append-only record of accepted proofs.
package commit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nozmo-king/chorum/lib/store"
)

var (
	ErrNotFound         = errors.New("commit: no such commit")
	ErrAlreadyCommitted = errors.New("commit: challenge already has a verified commit")
	ErrInvalidLink      = errors.New("commit: a commit must link exactly one thread or post")
	ErrNoChallenge      = errors.New("commit: challenge id is required")
)

// Commit records the proof that let one thread or post be created.
type Commit struct {
	ID           string    `json:"id"`
	ChallengeID  string    `json:"challenge_id"`
	Nonce        uint64    `json:"nonce_u64"`
	MinerVersion int       `json:"miner_version"`
	Timestamp    int64     `json:"timestamp_i64"`
	Digest       string    `json:"solved_hash_hex"`
	ThreadID     int64     `json:"thread_id,omitempty"`
	PostID       int64     `json:"post_id,omitempty"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c Commit) Valid() error {
	var errs []error

	if c.ChallengeID == "" {
		errs = append(errs, ErrNoChallenge)
	}

	if (c.ThreadID > 0) == (c.PostID > 0) {
		errs = append(errs, fmt.Errorf("%w: thread %d post %d", ErrInvalidLink, c.ThreadID, c.PostID))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Recorder appends commits to a store. Commits are kept forever.
type Recorder struct {
	commits  *store.JSON[Commit]
	verified *store.JSON[string]
	now      func() time.Time
}

func NewRecorder(s store.Interface) *Recorder {
	return &Recorder{
		commits:  &store.JSON[Commit]{Underlying: s, Prefix: "commit"},
		verified: &store.JSON[string]{Underlying: s, Prefix: "commit-verified"},
		now:      time.Now,
	}
}

// Record stores c, filling in its id and creation time when unset. A second
// verified commit for the same challenge fails with ErrAlreadyCommitted.
func (r *Recorder) Record(ctx context.Context, c Commit) (Commit, error) {
	if err := c.Valid(); err != nil {
		return Commit{}, err
	}

	if c.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Commit{}, fmt.Errorf("commit: can't generate id: %w", err)
		}
		c.ID = id.String()
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}

	if c.Verified {
		err := r.verified.Add(ctx, c.ChallengeID, c.ID, 0)
		if errors.Is(err, store.ErrExists) {
			return Commit{}, fmt.Errorf("%w: %s", ErrAlreadyCommitted, c.ChallengeID)
		}
		if err != nil {
			return Commit{}, fmt.Errorf("commit: can't index challenge %s: %w", c.ChallengeID, err)
		}
	}

	if err := r.commits.Add(ctx, c.ID, c, 0); err != nil {
		if c.Verified {
			_ = r.verified.Delete(ctx, c.ChallengeID)
		}
		return Commit{}, fmt.Errorf("commit: can't store %s: %w", c.ID, err)
	}

	return c, nil
}

func (r *Recorder) Get(ctx context.Context, id string) (*Commit, error) {
	c, err := r.commits.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("commit: can't load %s: %w", id, err)
	}
	return &c, nil
}

// ForChallenge returns the verified commit of a challenge.
func (r *Recorder) ForChallenge(ctx context.Context, challengeID string) (*Commit, error) {
	id, err := r.verified.Get(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no verified commit for challenge %s", ErrNotFound, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("commit: can't look up challenge %s: %w", challengeID, err)
	}

	return r.Get(ctx, id)
}
