package auth

import "strings"

// EncodeSHA1Bytes renders a digest the way the Minecraft protocol does:
// lowercase hex with leading zero nibbles skipped. All-zero input encodes
// to "0".
func EncodeSHA1Bytes(b []byte) string {
	const alphabet = "0123456789abcdef"

	var buf strings.Builder
	skipping := true
	for _, byt := range b {
		hi, lo := byt>>4, byt&0x0f
		if hi != 0 {
			skipping = false
		}
		if !skipping {
			buf.WriteByte(alphabet[hi])
		}
		if lo != 0 {
			skipping = false
		}
		if !skipping {
			buf.WriteByte(alphabet[lo])
		}
	}
	if buf.Len() == 0 {
		return "0"
	}
	return buf.String()
}
