// Package challenge issues proof-of-work challenges for new threads and
// replies and checks the proofs clients send back for them.
package challenge

import (
	"encoding/hex"
	"time"

	"github.com/nozmo-king/chorum/lib/pow"
)

// Challenge is the metadata about a single challenge issuance. It is never
// modified after it is stored.
type Challenge struct {
	ID             string    `json:"id"`                 // UUID identifying the challenge
	Identity       string    `json:"identity"`           // Fingerprint of the poster's public key
	Scope          pow.Scope `json:"scope"`              // thread or reply
	ThreadID       uint64    `json:"thread_id"`          // Thread replied to, 0 for a new thread
	ParentID       uint64    `json:"parent_id"`          // Post replied to, 0 for a top-level reply
	BoardID        int64     `json:"board_id,omitempty"` // Destination board of a new thread
	ContentHash    string    `json:"content_hash"`       // Hex SHA-256 of the minified draft
	RequiredPrefix string    `json:"required_prefix"`    // Hex prefix the proof digest must carry
	Version        int       `json:"version"`            // Challenge protocol version
	CanonicalBytes []byte    `json:"canonical_bytes"`    // HC1 buffer the client mines over
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the challenge can no longer be committed at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CanonicalHex is the canonical buffer as sent to clients.
func (c *Challenge) CanonicalHex() string {
	return hex.EncodeToString(c.CanonicalBytes)
}
