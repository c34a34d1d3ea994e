package handlers

import (
	"crypto/rand"
	"math/big"
)

// generateID generates a random alphanumeric ID
func generateID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// generateUserID generates a unique user ID
func generateUserID() string {
	return "u_" + generateID(12)
}
