package lib

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nozmo-king/chorum/lib/board"
	"github.com/nozmo-king/chorum/lib/challenge"
	"github.com/nozmo-king/chorum/lib/pow"
)

// maxBodyBytes caps API request bodies.
const maxBodyBytes = 1 << 20

var ErrBadRequest = errors.New("lib: invalid request format")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeRaw sends an already encoded JSON body.
func writeRaw(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	return nil
}

// statusFor maps an error to the status and message clients see. Anything
// unrecognized is an opaque internal error.
func statusFor(err error) (int, string) {
	var cerr *challenge.Error
	if errors.As(err, &cerr) {
		return cerr.StatusCode, cerr.PublicReason
	}

	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "Invalid request format"
	case errors.Is(err, pow.ErrMalformedIdentity):
		return http.StatusUnauthorized, "Invalid public key"
	case errors.Is(err, challenge.ErrInvalidOpID):
		return http.StatusBadRequest, "client_op_id must be a UUID"
	case errors.Is(err, challenge.ErrInvalidTarget),
		errors.Is(err, pow.ErrUnknownScope):
		return http.StatusBadRequest, "Invalid thread or parent id"
	case errors.Is(err, challenge.ErrSpent):
		return http.StatusConflict, "Challenge already used"
	case errors.Is(err, board.ErrThreadNotFound):
		return http.StatusNotFound, "Thread not found"
	case errors.Is(err, board.ErrParentNotFound):
		return http.StatusBadRequest, "Parent post not found in thread"
	case errors.Is(err, board.ErrThreadLocked):
		return http.StatusForbidden, "Thread is locked"
	case errors.Is(err, board.ErrEmptyBody):
		return http.StatusBadRequest, "Post body is required"
	case errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, lg *slog.Logger, err error) {
	status, msg := statusFor(err)

	if status >= http.StatusInternalServerError {
		lg.Error("request failed", "err", err)
	} else {
		lg.Debug("request rejected", "status", status, "err", err)
	}

	writeJSON(w, status, errorResponse{Error: msg})
}
