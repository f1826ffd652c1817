package provision

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	upperChars = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars = "abcdefghijkmnopqrstuvwxyz"
	digitChars = "23456789"
	allChars   = upperChars + lowerChars + digitChars

	MinSecretLength = 8
)

// GenerateSecret returns a random secret of exactly length characters with at
// least one uppercase letter, one lowercase letter and one digit. One character
// of each class is placed in the pool first, the rest is filled from the full
// alphabet, and the pool is then shuffled.
func GenerateSecret(length int) (string, error) {
	if length < MinSecretLength {
		return "", fmt.Errorf("provision: secret length %d below minimum %d", length, MinSecretLength)
	}

	pool := make([]byte, 0, length)
	for _, class := range []string{upperChars, lowerChars, digitChars} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		pool = append(pool, c)
	}
	for len(pool) < length {
		c, err := pick(allChars)
		if err != nil {
			return "", err
		}
		pool = append(pool, c)
	}

	for i := len(pool) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		pool[i], pool[j] = pool[j], pool[i]
	}
	return string(pool), nil
}

func pick(alphabet string) (byte, error) {
	i, err := randInt(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("provision: read random: %w", err)
	}
	return int(v.Int64()), nil
}
