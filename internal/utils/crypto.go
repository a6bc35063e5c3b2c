// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

func GenerateRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GeneratePaymentReference returns an opaque reference for gateways that
// do not issue their own.
func GeneratePaymentReference(prefix string) (string, error) {
	randomPart, err := GenerateRandomString(24)
	if err != nil {
		return "", err
	}
	return prefix + randomPart, nil
}

// ContentHash is the hex SHA-256 of data, used to name uploaded files.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
