package config

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestLen is the number of hex characters kept from the SHA-256 sum.
const DigestLen = 16

// HashFromBytes returns a short content digest of a configuration file,
// recorded in the run log so two runs can be compared.
func HashFromBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:DigestLen]
}
