package rooms

import (
	"crypto/rand"
	"strings"
)

const (
	IDLength   = 6
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// largest multiple of len(idAlphabet) below 256, for unbiased sampling
	idRejectAbove = 252
)

// NewID returns a random human-typeable room code such as "K3X9QZ".
func NewID() (string, error) {
	out := make([]byte, 0, IDLength)
	buf := make([]byte, IDLength*2)
	for len(out) < IDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= idRejectAbove {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == IDLength {
				break
			}
		}
	}
	return string(out), nil
}

// NormalizeID upper-cases and trims a user-typed room code.
func NormalizeID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(idAlphabet, id[i]) < 0 {
			return false
		}
	}
	return true
}
