package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/nozmo-king/chorum/internal"
	"github.com/nozmo-king/chorum/lib/board"
	"github.com/nozmo-king/chorum/lib/challenge"
	"github.com/nozmo-king/chorum/lib/commit"
	"github.com/nozmo-king/chorum/lib/ledger"
	"github.com/nozmo-king/chorum/lib/pow"
)

// powMode is the only proof mode chorum speaks.
const powMode = "vanity_prefix"

type powParamsResponse struct {
	Mode                  string `json:"mode"`
	DefaultPrefix         string `json:"default_prefix"`
	MinMinerVersion       int    `json:"min_miner_version"`
	SuggestedPrefixByLoad string `json:"suggested_prefix_by_load"`
}

type threadBeginRequest struct {
	ClientOpID string    `json:"client_op_id"`
	PostDraft  pow.Draft `json:"post_draft"`
	Pubkey     string    `json:"user_pubkey_hex"`
	Timestamp  int64     `json:"timestamp_i64"`
	BoardID    int64     `json:"board_id,omitempty"`
}

type replyBeginRequest struct {
	ClientOpID string    `json:"client_op_id"`
	PostDraft  pow.Draft `json:"post_draft"`
	Pubkey     string    `json:"user_pubkey_hex"`
	ThreadID   int64     `json:"thread_id"`
	ParentID   int64     `json:"parent_id,omitempty"`
	Timestamp  int64     `json:"timestamp_i64"`
}

type proofOfWork struct {
	Nonce        uint64 `json:"nonce_u64"`
	MinerVersion int    `json:"miner_version"`
	Timestamp    int64  `json:"timestamp_i64"`
}

// commitRequest is shared by both commit routes. Thread commits ignore the
// target ids.
type commitRequest struct {
	OpID        string      `json:"op_id"`
	ChallengeID string      `json:"challenge_id"`
	PostDraft   pow.Draft   `json:"post_draft"`
	Proof       proofOfWork `json:"proof"`
	Pubkey      string      `json:"user_pubkey_hex"`
	ThreadID    int64       `json:"thread_id,omitempty"`
	ParentID    int64       `json:"parent_id,omitempty"`
}

type threadCommitResponse struct {
	ThreadID int64 `json:"thread_id"`
}

type replyCommitResponse struct {
	PostID int64 `json:"post_id"`
}

func (s *Server) powParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, powParamsResponse{
		Mode:                  powMode,
		DefaultPrefix:         s.issuer.DefaultPrefix(),
		MinMinerVersion:       s.minMinerVersion,
		SuggestedPrefixByLoad: s.issuer.Suggested(r.Context()),
	})
}

// fresh reports whether op has no receipt yet. Handler-side checks are
// skipped for replays so a replay does no work besides the lookup.
func (s *Server) fresh(ctx context.Context, op string) bool {
	_, err := s.ledger.Get(ctx, op)
	return err != nil
}

func (s *Server) threadBegin(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(s.logger, r)

	var req threadBeginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, lg, err)
		return
	}

	if req.BoardID == 0 {
		req.BoardID = DefaultBoardID
	}

	if s.fresh(r.Context(), req.ClientOpID) {
		if err := checkBody(req.PostDraft); err != nil {
			s.writeError(w, lg, err)
			return
		}

		if _, err := s.boards.BoardByID(r.Context(), req.BoardID); err != nil {
			s.writeError(w, lg, err)
			return
		}
	}

	resp, err := s.issuer.Begin(r.Context(), challenge.BeginRequest{
		OpID:      req.ClientOpID,
		Identity:  req.Pubkey,
		Scope:     pow.ScopeThread,
		BoardID:   req.BoardID,
		Timestamp: req.Timestamp,
		Draft:     req.PostDraft,
	})
	if err != nil {
		s.writeError(w, lg, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) replyBegin(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(s.logger, r)

	var req replyBeginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, lg, err)
		return
	}

	if s.fresh(r.Context(), req.ClientOpID) {
		if req.ThreadID < 0 || req.ParentID < 0 {
			s.writeError(w, lg, fmt.Errorf("%w: negative id", challenge.ErrInvalidTarget))
			return
		}

		if err := checkBody(req.PostDraft); err != nil {
			s.writeError(w, lg, err)
			return
		}

		if req.ThreadID != 0 {
			if _, err := s.boards.Thread(r.Context(), req.ThreadID); err != nil {
				s.writeError(w, lg, err)
				return
			}
		}
	}

	resp, err := s.issuer.Begin(r.Context(), challenge.BeginRequest{
		OpID:      req.ClientOpID,
		Identity:  req.Pubkey,
		Scope:     pow.ScopeReply,
		ThreadID:  uint64(req.ThreadID),
		ParentID:  uint64(req.ParentID),
		Timestamp: req.Timestamp,
		Draft:     req.PostDraft,
	})
	if err != nil {
		s.writeError(w, lg, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func checkBody(d pow.Draft) error {
	if strings.TrimSpace(d.Body) == "" {
		return board.ErrEmptyBody
	}
	return nil
}

func (s *Server) threadCommit(w http.ResponseWriter, r *http.Request) {
	s.handleCommit(w, r, pow.ScopeThread)
}

func (s *Server) replyCommit(w http.ResponseWriter, r *http.Request) {
	s.handleCommit(w, r, pow.ScopeReply)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request, scope pow.Scope) {
	lg := internal.GetRequestLogger(s.logger, r).With("scope", scope.String())

	var req commitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		commitResults.WithLabelValues(scope.String(), "bad_request").Inc()
		s.writeError(w, lg, err)
		return
	}

	if scope == pow.ScopeThread {
		req.ThreadID, req.ParentID = 0, 0
	}

	lg = lg.With("challenge", req.ChallengeID, "op_id", req.OpID)

	payload, replayed, err := s.commit(r.Context(), lg, scope, req)
	switch {
	case err != nil:
		status, _ := statusFor(err)
		commitResults.WithLabelValues(scope.String(), strconv.Itoa(status)).Inc()
		s.writeError(w, lg, err)
	case replayed:
		commitResults.WithLabelValues(scope.String(), "replayed").Inc()
		writeRaw(w, http.StatusOK, payload)
	default:
		commitResults.WithLabelValues(scope.String(), "accepted").Inc()
		writeRaw(w, http.StatusOK, payload)
	}
}

func commitKind(s pow.Scope) ledger.Kind {
	if s == pow.ScopeReply {
		return ledger.KindReplyCommit
	}
	return ledger.KindThreadCommit
}

// commitReceiptKey keys commit receipts by challenge. Begin refuses to
// replay a receipt that is not a begin receipt.
func commitReceiptKey(challengeID string) string {
	return "commit:" + challengeID
}

// commit verifies a proof, consumes its challenge, creates the content and
// records the commit. A retry carrying the proof that consumed the
// challenge answers with the stored response.
func (s *Server) commit(ctx context.Context, lg *slog.Logger, scope pow.Scope, req commitRequest) ([]byte, bool, error) {
	if req.ChallengeID == "" {
		return nil, false, challenge.NewError("commit", "Challenge not found", challenge.ErrNotFound).WithStatus(http.StatusNotFound)
	}

	if req.ThreadID < 0 || req.ParentID < 0 {
		return nil, false, fmt.Errorf("%w: negative id", challenge.ErrInvalidTarget)
	}

	claim := challenge.CommitClaim{
		Identity:     req.Pubkey,
		Scope:        scope,
		ThreadID:     uint64(req.ThreadID),
		ParentID:     uint64(req.ParentID),
		Timestamp:    req.Proof.Timestamp,
		Draft:        req.PostDraft,
		Nonce:        req.Proof.Nonce,
		MinerVersion: req.Proof.MinerVersion,
	}

	key := commitReceiptKey(req.ChallengeID)

	switch rcpt, err := s.ledger.Get(ctx, key); {
	case err == nil:
		if err := s.checkReplay(ctx, rcpt, claim, req.ChallengeID); err != nil {
			return nil, false, err
		}
		lg.Debug("replaying commit from receipt")
		return rcpt.Payload, true, nil
	case !errors.Is(err, ledger.ErrNotFound):
		return nil, false, err
	}

	if err := checkBody(req.PostDraft); err != nil {
		return nil, false, err
	}

	verdict, err := s.verifier.Commit(ctx, req.ChallengeID, claim)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()

	if err := s.repo.Claim(ctx, challenge.Claim{
		ChallengeID: req.ChallengeID,
		Digest:      verdict.Digest,
		ClaimedAt:   now,
	}, s.issuer.Retention()); err != nil {
		return nil, false, err
	}

	proof := board.Proof{
		Nonce:       req.Proof.Nonce,
		Hash:        verdict.Digest,
		ChallengeID: req.ChallengeID,
		Difficulty:  pow.Score(verdict.Digest),
		VerifiedAt:  &now,
	}

	rec := commit.Commit{
		ChallengeID:  req.ChallengeID,
		Nonce:        req.Proof.Nonce,
		MinerVersion: req.Proof.MinerVersion,
		Timestamp:    req.Proof.Timestamp,
		Digest:       verdict.Digest,
		Verified:     true,
		CreatedAt:    now,
	}

	var resp any
	switch scope {
	case pow.ScopeThread:
		boardID := verdict.Challenge.BoardID
		if boardID == 0 {
			boardID = DefaultBoardID
		}

		id, err := s.boards.CreateThread(ctx, board.NewThread{
			BoardID:      boardID,
			Title:        req.PostDraft.Title,
			Content:      req.PostDraft.Body,
			AuthorPubkey: req.Pubkey,
			Proof:        proof,
		})
		if err != nil {
			return nil, false, s.release(ctx, lg, req.ChallengeID, err)
		}
		rec.ThreadID = id
		resp = threadCommitResponse{ThreadID: id}
	case pow.ScopeReply:
		id, err := s.boards.CreatePost(ctx, board.NewPost{
			ThreadID:     req.ThreadID,
			ParentID:     req.ParentID,
			Content:      req.PostDraft.Body,
			AuthorPubkey: req.Pubkey,
			Attachments:  req.PostDraft.Attachments,
			Proof:        proof,
		})
		if err != nil {
			return nil, false, s.release(ctx, lg, req.ChallengeID, err)
		}
		rec.PostID = id
		resp = replyCommitResponse{PostID: id}
	}

	contentCreated.WithLabelValues(scope.String()).Inc()

	// The content exists and the claim holds, so bookkeeping failures are
	// logged instead of failing a request the client can't retry.
	if _, err := s.commits.Record(ctx, rec); err != nil {
		lg.Error("can't record commit", "err", err)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, false, fmt.Errorf("lib: can't encode commit response: %w", err)
	}

	if err := s.ledger.Put(ctx, key, commitKind(scope), json.RawMessage(payload)); err != nil {
		lg.Error("can't store commit receipt", "err", err)
	}

	lg.Info("content created", "digest", verdict.Digest, "difficulty", proof.Difficulty, "thread_id", rec.ThreadID, "post_id", rec.PostID)

	return payload, false, nil
}

// checkReplay makes sure a commit retry is the same request that consumed
// the challenge: same route, and claimed params that hash to the accepted
// digest.
func (s *Server) checkReplay(ctx context.Context, rcpt ledger.OpReceipt, claim challenge.CommitClaim, challengeID string) error {
	if rcpt.Kind != commitKind(claim.Scope) {
		return fmt.Errorf("%w: %s was committed as %s", challenge.ErrSpent, challengeID, rcpt.Kind)
	}

	digest, err := s.acceptedDigest(ctx, challengeID)
	if err != nil {
		return err
	}

	return s.verifier.Replay(ctx, challengeID, claim, digest)
}

// acceptedDigest finds the digest a challenge was consumed with. Commit
// records are kept forever; the claim is the fallback when recording
// failed. An empty digest matches nothing.
func (s *Server) acceptedDigest(ctx context.Context, challengeID string) (string, error) {
	c, err := s.commits.ForChallenge(ctx, challengeID)
	switch {
	case err == nil:
		return c.Digest, nil
	case !errors.Is(err, commit.ErrNotFound):
		return "", err
	}

	cl, err := s.repo.Claimed(ctx, challengeID)
	if err != nil {
		return "", err
	}
	if cl == nil {
		return "", nil
	}
	return cl.Digest, nil
}

// release gives the challenge back after content creation failed, then
// returns cause. A challenge that already backs content stays claimed.
func (s *Server) release(ctx context.Context, lg *slog.Logger, challengeID string, cause error) error {
	if errors.Is(cause, board.ErrProofReused) {
		return fmt.Errorf("%w: %w", challenge.ErrSpent, cause)
	}
	if err := s.repo.Release(ctx, challengeID); err != nil {
		lg.Error("can't release challenge claim", "err", err)
	}
	return cause
}
