package device

import (
	"encoding/hex"
	"strings"
)

// UUIDFromModule converts a UUID as delivered by the radio module
// (little-endian byte order) to the big-endian uppercase hex form used
// throughout the entity model: bytes CD AB become "ABCD".
func UUIDFromModule(raw []byte) string {
	reversed := make([]byte, len(raw))
	for i, b := range raw {
		reversed[len(raw)-1-i] = b
	}
	return strings.ToUpper(hex.EncodeToString(reversed))
}
