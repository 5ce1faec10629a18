package challenge

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nozmo-king/chorum"
	"github.com/nozmo-king/chorum/lib/pow"
)

// CommitClaim is what a client sends back with its solution. The proof is
// checked against these claimed values, not against the stored canonical
// bytes.
type CommitClaim struct {
	Identity     string
	Scope        pow.Scope
	ThreadID     uint64
	ParentID     uint64
	Timestamp    int64
	Draft        pow.Draft
	Nonce        uint64
	MinerVersion int
}

func (c CommitClaim) Params() pow.Params {
	return pow.Params{
		Identity:  c.Identity,
		Scope:     c.Scope,
		ThreadID:  c.ThreadID,
		ParentID:  c.ParentID,
		Timestamp: c.Timestamp,
		Draft:     c.Draft,
	}
}

// Verdict is the outcome of checking a commit.
type Verdict struct {
	Challenge *Challenge
	Accepted  bool
	Digest    string
}

// Verifier checks commits against stored challenges. It does not consume
// the challenge; callers claim it once they decide to act on the verdict.
type Verifier struct {
	repo            *Repository
	verify          pow.Verifier
	now             func() time.Time
	minMinerVersion int
	log             *slog.Logger
}

type VerifierOptions struct {
	Repository      *Repository
	Verify          pow.Verifier
	MinMinerVersion int
	Clock           func() time.Time
	Logger          *slog.Logger
}

func NewVerifier(opts VerifierOptions) *Verifier {
	result := &Verifier{
		repo:            opts.Repository,
		verify:          opts.Verify,
		now:             opts.Clock,
		minMinerVersion: opts.MinMinerVersion,
		log:             opts.Logger,
	}

	if result.verify == nil {
		result.verify = pow.VerifierFunc(pow.BasicSHA256Verify)
	}
	if result.now == nil {
		result.now = time.Now
	}
	if result.minMinerVersion <= 0 {
		result.minMinerVersion = chorum.MinMinerVersion
	}
	if result.log == nil {
		result.log = slog.Default()
	}

	return result
}

// Commit loads challengeID and checks claim's proof against its required
// prefix. An accepted verdict has a nil error.
func (v *Verifier) Commit(ctx context.Context, challengeID string, claim CommitClaim) (*Verdict, error) {
	lg := v.log.With("challenge", challengeID, "scope", claim.Scope.String())

	chall, err := v.repo.Get(ctx, challengeID)
	if errors.Is(err, ErrNotFound) {
		return nil, NewError("commit", "Challenge not found", err).WithStatus(http.StatusNotFound)
	}
	if err != nil {
		return nil, err
	}

	result := &Verdict{Challenge: chall}

	if chall.Expired(v.now()) {
		challengesValidated.WithLabelValues(claim.Scope.String(), "expired").Inc()
		return result, NewError("commit", "Challenge expired", fmt.Errorf("%w: expired at %s", ErrExpired, chall.ExpiresAt.Format(time.RFC3339)))
	}

	if chall.Scope != claim.Scope {
		challengesValidated.WithLabelValues(claim.Scope.String(), "wrong_scope").Inc()
		return result, NewError("commit", "Challenge was issued for a "+chall.Scope.String(), fmt.Errorf("%w: want %s, got %s", ErrWrongScope, chall.Scope, claim.Scope))
	}

	if claim.MinerVersion < v.minMinerVersion {
		challengesValidated.WithLabelValues(claim.Scope.String(), "miner_version").Inc()
		return result, NewError("commit", "Miner version too old", fmt.Errorf("%w: want at least %d, got %d", ErrMinerVersion, v.minMinerVersion, claim.MinerVersion))
	}

	t0 := time.Now()
	ok, digest, err := v.verify.Verify(ctx, claim.Params(), claim.Nonce, chall.RequiredPrefix)
	verifyTime.Observe(time.Since(t0).Seconds())
	result.Digest = digest

	switch {
	case errors.Is(err, pow.ErrMalformedIdentity):
		challengesValidated.WithLabelValues(claim.Scope.String(), "malformed_identity").Inc()
		return result, NewError("commit", "Invalid public key", err).WithStatus(http.StatusUnauthorized)
	case err != nil || !ok:
		if err == nil {
			err = pow.ErrInvalidProof
		}
		challengesValidated.WithLabelValues(claim.Scope.String(), "invalid_proof").Inc()
		lg.Debug("proof rejected", "digest", digest, "required_prefix", chall.RequiredPrefix)
		return result, NewError("commit", "Invalid proof of work", err)
	}

	result.Accepted = true
	challengesValidated.WithLabelValues(claim.Scope.String(), "accepted").Inc()
	lg.Debug("proof accepted", "digest", digest)

	return result, nil
}

// Replay checks a retried commit against the digest its challenge was
// consumed with. Expiry is not checked since the proof was accepted in
// time. A different valid solution of the same challenge gets ErrSpent.
func (v *Verifier) Replay(ctx context.Context, challengeID string, claim CommitClaim, acceptedDigest string) error {
	canonical, err := pow.CanonicalBytes(claim.Params())
	switch {
	case errors.Is(err, pow.ErrMalformedIdentity):
		return NewError("commit", "Invalid public key", err).WithStatus(http.StatusUnauthorized)
	case err != nil:
		return NewError("commit", "Invalid proof of work", err)
	}

	digest := pow.Digest(canonical, claim.Nonce)

	if acceptedDigest != "" && subtle.ConstantTimeCompare([]byte(digest), []byte(acceptedDigest)) == 1 {
		challengesValidated.WithLabelValues(claim.Scope.String(), "replayed").Inc()
		return nil
	}

	chall, err := v.repo.Get(ctx, challengeID)
	if err == nil && chall.Scope == claim.Scope && pow.VerifyPrefix(digest, chall.RequiredPrefix) {
		challengesValidated.WithLabelValues(claim.Scope.String(), "spent").Inc()
		return fmt.Errorf("%w: %s", ErrSpent, challengeID)
	}

	challengesValidated.WithLabelValues(claim.Scope.String(), "invalid_proof").Inc()
	return NewError("commit", "Invalid proof of work", fmt.Errorf("%w: digest %s does not match the accepted proof of %s", pow.ErrInvalidProof, digest, challengeID))
}
