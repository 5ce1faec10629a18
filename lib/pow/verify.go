package pow

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidProof = errors.New("pow: proof digest does not start with the required prefix")
	ErrBadPrefix    = errors.New("pow: required prefix must be 1-64 lowercase hex characters")
)

// Verifier checks a claimed proof against a required prefix and reports the
// digest it computed.
type Verifier interface {
	Verify(ctx context.Context, p Params, nonce uint64, requiredPrefix string) (bool, string, error)
}

type VerifierFunc func(ctx context.Context, p Params, nonce uint64, requiredPrefix string) (bool, string, error)

func (vf VerifierFunc) Verify(ctx context.Context, p Params, nonce uint64, requiredPrefix string) (bool, string, error) {
	return vf(ctx, p, nonce, requiredPrefix)
}

// SHA256Hex hashes data and returns the lowercase hex digest.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ProofInput is canonical || nonce as a fixed 8 byte little-endian suffix.
func ProofInput(canonical []byte, nonce uint64) []byte {
	buf := make([]byte, 0, len(canonical)+8)
	buf = append(buf, canonical...)
	return binary.LittleEndian.AppendUint64(buf, nonce)
}

// Digest returns hex(SHA256(canonical || nonce)).
func Digest(canonical []byte, nonce uint64) string {
	return SHA256Hex(ProofInput(canonical, nonce))
}

// VerifyPrefix is a literal character-prefix match on the hex digest.
func VerifyPrefix(digestHex, requiredPrefix string) bool {
	return strings.HasPrefix(digestHex, requiredPrefix)
}

// ValidPrefix reports whether prefix can ever be matched by a lowercase hex
// SHA-256 digest.
func ValidPrefix(prefix string) error {
	if len(prefix) == 0 || len(prefix) > sha256.Size*2 {
		return fmt.Errorf("%w: got %q", ErrBadPrefix, prefix)
	}

	for _, ch := range prefix {
		if !('0' <= ch && ch <= '9') && !('a' <= ch && ch <= 'f') {
			return fmt.Errorf("%w: got %q", ErrBadPrefix, prefix)
		}
	}

	return nil
}

// BasicSHA256Verify recomputes the canonical bytes from p, hashes them with
// nonce and accepts iff the digest carries requiredPrefix. The digest is
// returned whenever it could be computed, accepted or not.
func BasicSHA256Verify(ctx context.Context, p Params, nonce uint64, requiredPrefix string) (bool, string, error) {
	canonical, err := CanonicalBytes(p)
	if err != nil {
		return false, "", err
	}

	digest := Digest(canonical, nonce)

	if !VerifyPrefix(digest, requiredPrefix) {
		return false, digest, fmt.Errorf("%w: wanted prefix %q, got digest %s", ErrInvalidProof, requiredPrefix, digest)
	}

	return true, digest, nil
}
