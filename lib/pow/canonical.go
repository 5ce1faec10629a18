// Package pow implements the HC1 proof-of-work primitives: the canonical
// encoding of a submission intent, the proof digest, prefix verification and
// the difficulty scoring used for ranking and display.
//
// Nothing in this package performs I/O or searches for nonces. Mining is the
// client's job.
package pow

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

const (
	// Magic is the leading tag of every HC1 canonical buffer.
	Magic = "HC1"

	// IdentityLen is the length of a hex-encoded compressed public key.
	IdentityLen = 66

	// CanonicalLen is the exact size of an HC1 canonical buffer.
	CanonicalLen = len(Magic) + IdentityLen + 1 + 8 + 8 + 8 + sha256.Size
)

var (
	ErrMalformedIdentity = errors.New("pow: identity fingerprint must be 66 hex characters starting with 02 or 03")
	ErrUnknownScope      = errors.New("pow: unknown scope")
)

// Scope says whether a challenge authorizes a new thread or a reply. Its
// value is the scope byte written into the canonical buffer.
type Scope byte

const (
	ScopeThread Scope = 't'
	ScopeReply  Scope = 'r'
)

func (s Scope) String() string {
	switch s {
	case ScopeThread:
		return "thread"
	case ScopeReply:
		return "reply"
	default:
		return fmt.Sprintf("Scope(%q)", byte(s))
	}
}

func (s Scope) Valid() error {
	switch s {
	case ScopeThread, ScopeReply:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScope, byte(s))
	}
}

func (s Scope) MarshalText() ([]byte, error) {
	if err := s.Valid(); err != nil {
		return nil, err
	}
	return []byte(s.String()), nil
}

func (s *Scope) UnmarshalText(data []byte) error {
	switch string(data) {
	case "thread", "t":
		*s = ScopeThread
	case "reply", "r":
		*s = ScopeReply
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScope, string(data))
	}
	return nil
}

// Draft is a submission before it is accepted. Only its canonical
// derivation is ever stored.
type Draft struct {
	Attachments []string `json:"attachments"`
	Body        string   `json:"body"`
	Refs        []string `json:"refs"`
	Title       string   `json:"title"`
}

// Minified renders the draft as RFC 8785 canonical JSON with exactly the
// keys attachments, body, refs and title. Missing lists render as [].
func (d Draft) Minified() ([]byte, error) {
	norm := d
	if norm.Attachments == nil {
		norm.Attachments = []string{}
	}
	if norm.Refs == nil {
		norm.Refs = []string{}
	}

	raw, err := json.Marshal(norm)
	if err != nil {
		return nil, fmt.Errorf("pow: can't marshal draft: %w", err)
	}

	result, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("pow: can't canonicalize draft: %w", err)
	}

	return result, nil
}

// ContentHash is the SHA-256 digest of the minified draft.
func (d Draft) ContentHash() ([sha256.Size]byte, error) {
	data, err := d.Minified()
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// Params are the logical inputs bound by a proof.
type Params struct {
	Identity  string
	Scope     Scope
	ThreadID  uint64
	ParentID  uint64
	Timestamp int64
	Draft     Draft
}

// ValidateIdentity checks the fingerprint format: 66 hex characters whose
// first two are 02 or 03.
func ValidateIdentity(identity string) error {
	if len(identity) != IdentityLen {
		return fmt.Errorf("%w: got %d characters", ErrMalformedIdentity, len(identity))
	}

	if !strings.HasPrefix(identity, "02") && !strings.HasPrefix(identity, "03") {
		return fmt.Errorf("%w: bad prefix %q", ErrMalformedIdentity, identity[:2])
	}

	if _, err := hex.DecodeString(identity); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
	}

	return nil
}

// CanonicalBytes builds the HC1 buffer for p:
//
//	"HC1" | identity | scope | thread_id u64 LE | parent_id u64 LE | timestamp i64 LE | sha256(minified draft)
func CanonicalBytes(p Params) ([]byte, error) {
	if err := ValidateIdentity(p.Identity); err != nil {
		return nil, err
	}

	if err := p.Scope.Valid(); err != nil {
		return nil, err
	}

	contentHash, err := p.Draft.ContentHash()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, CanonicalLen)
	buf = append(buf, Magic...)
	buf = append(buf, p.Identity...)
	buf = append(buf, byte(p.Scope))
	buf = binary.LittleEndian.AppendUint64(buf, p.ThreadID)
	buf = binary.LittleEndian.AppendUint64(buf, p.ParentID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.Timestamp))
	buf = append(buf, contentHash[:]...)

	return buf, nil
}
