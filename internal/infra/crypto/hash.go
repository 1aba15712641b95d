package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

const DefaultHashAlgorithm = "sha256"

// Hash returns the lowercase hex digest of data under the named algorithm.
func Hash(data []byte, algorithm string) (string, error) {
	if algorithm == "" {
		algorithm = DefaultHashAlgorithm
	}
	var h hash.Hash
	switch algorithm {
	case "sha256":
		h = sha256.New()
	case "sha384":
		h = sha512.New384()
	case "sha512":
		h = sha512.New()
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256Hex is the common case used for canonical payload digests.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
