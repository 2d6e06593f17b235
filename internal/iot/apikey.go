package iot

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const apiKeyPrefix = "sk_"

// NewAPIKey mints a per-sensor static credential: the sk_ prefix followed
// by 48 hex characters of entropy.
func NewAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
