package challenge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nozmo-king/chorum"
	"github.com/nozmo-king/chorum/lib/ledger"
	"github.com/nozmo-king/chorum/lib/pow"
)

// DefaultRetention is how long a challenge outlives its expiry so late
// commits are told it expired instead of that it never existed.
const DefaultRetention = 24 * time.Hour

var ErrBadTTL = errors.New("challenge: TTL must be positive")

// IssuerOptions configure an Issuer. DefaultPrefix and TTL are fixed for the
// issuer's lifetime.
type IssuerOptions struct {
	Repository    *Repository
	Ledger        *ledger.Ledger
	DefaultPrefix string
	TTL           time.Duration
	Retention     time.Duration
	Difficulty    DifficultyStrategy
	Load          LoadFunc
	Clock         func() time.Time
	Logger        *slog.Logger
}

// Issuer creates challenges from begin requests.
type Issuer struct {
	repo          *Repository
	ledger        *ledger.Ledger
	defaultPrefix string
	ttl           time.Duration
	retention     time.Duration
	difficulty    DifficultyStrategy
	load          LoadFunc
	now           func() time.Time
	log           *slog.Logger
	recent        window
}

func NewIssuer(opts IssuerOptions) (*Issuer, error) {
	if err := pow.ValidPrefix(opts.DefaultPrefix); err != nil {
		return nil, err
	}

	if opts.TTL <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrBadTTL, opts.TTL)
	}

	result := &Issuer{
		repo:          opts.Repository,
		ledger:        opts.Ledger,
		defaultPrefix: opts.DefaultPrefix,
		ttl:           opts.TTL,
		retention:     opts.Retention,
		difficulty:    opts.Difficulty,
		load:          opts.Load,
		now:           opts.Clock,
		log:           opts.Logger,
	}

	if result.retention <= 0 {
		result.retention = DefaultRetention
	}
	if result.difficulty == nil {
		result.difficulty = StaticDifficulty(opts.DefaultPrefix)
	}
	if result.load == nil {
		result.load = SystemLoad
	}
	if result.now == nil {
		result.now = time.Now
	}
	if result.log == nil {
		result.log = slog.Default()
	}

	return result, nil
}

// TTL is the lifetime of every challenge this issuer creates.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Retention is how long challenges are kept in the store.
func (i *Issuer) Retention() time.Duration { return i.ttl + i.retention }

// DefaultPrefix is the prefix used when no strategy overrides it.
func (i *Issuer) DefaultPrefix() string { return i.defaultPrefix }

// BeginRequest asks for a challenge for one thread or reply.
type BeginRequest struct {
	OpID      string
	Identity  string
	Scope     pow.Scope
	ThreadID  uint64
	ParentID  uint64
	BoardID   int64
	Timestamp int64
	Draft     pow.Draft
}

// BeginResponse is sent to the client and stored as the op receipt.
type BeginResponse struct {
	ChallengeID       string `json:"challenge_id"`
	RequiredPrefixHex string `json:"required_prefix_hex"`
	ChallengeVersion  int    `json:"challenge_version"`
	OpID              string `json:"op_id"`
	ExpiresAt         string `json:"expires_at"`
	PostBytesHash     string `json:"post_bytes_hash"`
	CanonicalBytes    string `json:"canonical_bytes"`

	// Replayed is set when the response came from an earlier request.
	Replayed bool `json:"-"`
}

func beginKind(s pow.Scope) ledger.Kind {
	if s == pow.ScopeReply {
		return ledger.KindReplyBegin
	}
	return ledger.KindThreadBegin
}

func decodeReceipt(r ledger.OpReceipt) (*BeginResponse, error) {
	if r.Kind != ledger.KindThreadBegin && r.Kind != ledger.KindReplyBegin {
		return nil, fmt.Errorf("%w: %s names a %s receipt", ErrInvalidOpID, r.ID, r.Kind)
	}

	var resp BeginResponse
	if err := json.Unmarshal(r.Payload, &resp); err != nil {
		return nil, fmt.Errorf("challenge: can't decode receipt %s: %w", r.ID, err)
	}
	resp.Replayed = true
	return &resp, nil
}

func validateTarget(req BeginRequest) error {
	switch req.Scope {
	case pow.ScopeThread:
		if req.ThreadID != 0 || req.ParentID != 0 {
			return fmt.Errorf("%w: a new thread can't target thread %d parent %d", ErrInvalidTarget, req.ThreadID, req.ParentID)
		}
	case pow.ScopeReply:
		if req.ThreadID == 0 {
			return fmt.Errorf("%w: a reply needs a thread id", ErrInvalidTarget)
		}
	default:
		return req.Scope.Valid()
	}
	return nil
}

// Begin issues a challenge, or returns the response already recorded for
// req.OpID without doing anything else.
func (i *Issuer) Begin(ctx context.Context, req BeginRequest) (*BeginResponse, error) {
	lg := i.log.With("op_id", req.OpID, "scope", req.Scope.String())

	switch r, err := i.ledger.Get(ctx, req.OpID); {
	case err == nil:
		resp, err := decodeReceipt(r)
		if err != nil {
			return nil, err
		}
		challengeReplays.WithLabelValues(req.Scope.String()).Inc()
		lg.Debug("replaying begin from receipt")
		return resp, nil
	case !errors.Is(err, ledger.ErrNotFound) && !errors.Is(err, ledger.ErrNoOpID):
		return nil, err
	}

	if err := pow.ValidateIdentity(req.Identity); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(req.OpID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOpID, err)
	}

	if err := validateTarget(req); err != nil {
		return nil, err
	}

	params := pow.Params{
		Identity:  req.Identity,
		Scope:     req.Scope,
		ThreadID:  req.ThreadID,
		ParentID:  req.ParentID,
		Timestamp: req.Timestamp,
		Draft:     req.Draft,
	}

	canonical, err := pow.CanonicalBytes(params)
	if err != nil {
		return nil, err
	}

	contentHash, err := req.Draft.ContentHash()
	if err != nil {
		return nil, err
	}

	prefix := i.requiredPrefix(ctx, lg, req.Scope)

	now := i.now().UTC()
	i.recent.Add(now)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("challenge: can't generate id: %w", err)
	}

	chall := Challenge{
		ID:             id.String(),
		Identity:       req.Identity,
		Scope:          req.Scope,
		ThreadID:       req.ThreadID,
		ParentID:       req.ParentID,
		BoardID:        req.BoardID,
		ContentHash:    hex.EncodeToString(contentHash[:]),
		RequiredPrefix: prefix,
		Version:        chorum.ChallengeVersion,
		CanonicalBytes: canonical,
		CreatedAt:      now,
		ExpiresAt:      now.Add(i.ttl),
	}

	if err := i.repo.Create(ctx, chall, i.Retention()); err != nil {
		return nil, err
	}

	resp := &BeginResponse{
		ChallengeID:       chall.ID,
		RequiredPrefixHex: chall.RequiredPrefix,
		ChallengeVersion:  chall.Version,
		OpID:              req.OpID,
		ExpiresAt:         chall.ExpiresAt.Format(time.RFC3339),
		PostBytesHash:     chall.ContentHash,
		CanonicalBytes:    chall.CanonicalHex(),
	}

	r, stored, err := i.ledger.PutIfAbsent(ctx, req.OpID, beginKind(req.Scope), resp)
	if err != nil {
		return nil, err
	}

	if !stored {
		lg.Debug("lost begin race, returning the first response", "discarded_challenge", chall.ID)
		challengeReplays.WithLabelValues(req.Scope.String()).Inc()
		return decodeReceipt(r)
	}

	challengesIssued.WithLabelValues(req.Scope.String(), prefix).Inc()
	lg.Debug("issued challenge", "challenge", chall.ID, "required_prefix", prefix, "expires_at", chall.ExpiresAt)

	return resp, nil
}

// Suggested returns the prefix a thread challenge would get right now.
func (i *Issuer) Suggested(ctx context.Context) string {
	return i.requiredPrefix(ctx, i.log, pow.ScopeThread)
}

func (i *Issuer) requiredPrefix(ctx context.Context, lg *slog.Logger, scope pow.Scope) string {
	in := DifficultyInput{
		Scope:  scope,
		Recent: i.recent.Count(i.now()),
	}

	ld, err := i.load(ctx)
	if err != nil {
		lg.Debug("can't read system load", "err", err)
	}
	in.Load = ld

	prefix, err := i.difficulty.Prefix(ctx, in)
	if err != nil {
		lg.Error("difficulty strategy failed, using default prefix", "err", err)
		return i.defaultPrefix
	}

	if err := pow.ValidPrefix(prefix); err != nil {
		lg.Error("difficulty strategy returned an invalid prefix, using default", "err", err)
		return i.defaultPrefix
	}

	return prefix
}
