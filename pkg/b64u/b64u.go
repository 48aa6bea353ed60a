// Package b64u holds base64url helpers used for compact ids and random tokens.
package b64u

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FromBase64URL converts an unpadded base64url string into standard padded base64.
func FromBase64URL(s string) string {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return s
}

// ToBase64URL converts standard base64 into unpadded base64url.
func ToBase64URL(s string) string {
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return strings.TrimRight(s, "=")
}

// EncryptID encodes a uuid as a 22 character base64url string.
func EncryptID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// DecryptID reverses EncryptID. Canonical uuid strings are accepted as well.
func DecryptID(s string) (uuid.UUID, error) {
	if id, err := uuid.Parse(s); err == nil {
		return id, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("b64u: decode id: %w", err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("b64u: decode id: %w", err)
	}
	return id, nil
}

// RandomHex returns n random bytes hex-encoded (2n characters).
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
