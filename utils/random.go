package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateEntryID returns an opaque identifier for a new queue entry.
// 10 random bytes rendered as 20 hex characters.
func GenerateEntryID() (string, error) {
	byt := make([]byte, 10)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return hex.EncodeToString(byt), nil
}
