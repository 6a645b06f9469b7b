package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// OwnerKey returns a stable, path-safe token for an owner id so storage keys
// never carry the raw id.
func OwnerKey(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:16])
}
