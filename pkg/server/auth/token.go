package auth

import (
	"crypto/rand"
	"math/big"
)

const (
	tokenLength   = 24
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateToken returns a random alphanumeric session token.
func GenerateToken() (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	token := make([]byte, tokenLength)
	for i := range token {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		token[i] = tokenAlphabet[n.Int64()]
	}
	return string(token), nil
}
