package tool

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// PrefixedRef builds a locally generated provider reference such as
// "pending_<uuid>" or "manual_refund_<uuid>".
func PrefixedRef(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
