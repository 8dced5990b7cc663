package utils

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// NewID returns a random identifier for rooms and bids.
// Room IDs double as the public share link, so they must be unguessable.
func NewID() string {
	return uuid.NewString()
}

// NewOwnerToken returns the secret that authorizes room management.
// 32 random bytes, base64url without padding. Longer than IDs so that
// knowing a room ID gives no purchase on its owner token.
func NewOwnerToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
