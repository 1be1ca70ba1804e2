package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// The version suffix leaves room for a future algorithm change.
const (
	DomainSource   = "morphir/source/v1"
	DomainMIR      = "morphir/mir/v1"
	DomainArtifact = "morphir/artifact/v1"
	DomainDebug    = "morphir/debug/v1"
)

// Sum computes SHA256(domain + 0x00 + data).
// The null separator removes any ambiguity at the domain/data boundary.
func Sum(domain string, data []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Digest is Sum rendered as lowercase hex.
func Digest(domain string, data []byte) string {
	sum := Sum(domain, data)
	return hex.EncodeToString(sum[:])
}

// DigestValue digests the canonical JSON form of v.
func DigestValue(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return Digest(domain, data), nil
}
