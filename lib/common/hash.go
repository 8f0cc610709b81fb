package common

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
)

// Hash hashes the given strings with sha256. Every part is prefixed by its
// byte length, so ("ab", "c") and ("a", "bc") never collide. The result is
// base64url encoded.
func Hash(parts ...string) string {
	h := sha256.New()
	for _, s := range parts {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte(s))
	}

	return EncodeBase64(h.Sum(nil))
}

func EncodeBase64(b []byte) string {
	return base64.URLEncoding.EncodeToString(b)
}

func DecodeBase64(s string) ([]byte, error) {
	return base64.URLEncoding.DecodeString(s)
}

// IsBase64 checks s is valid, non-empty base64url.
func IsBase64(s string) bool {
	if len(s) < 1 {
		return false
	}
	_, err := DecodeBase64(s)
	return err == nil
}
