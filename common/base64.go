package common

import "encoding/base64"

// Base64Encode renders bytes as standard RFC 4648 base64 (with padding).
func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
