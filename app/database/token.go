package database

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 18

// NewToken returns an unpredictable URL-safe token used as the public
// feed path component. 18 random bytes encode to 24 characters.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
