package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key derives a stable fingerprint for a synthesis request. Identical
// speaker/text/language/speed combinations always map to the same key.
func Key(speaker, text, language string, speed float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%.3f", speaker, text, language, speed)))
	return hex.EncodeToString(sum[:])
}
