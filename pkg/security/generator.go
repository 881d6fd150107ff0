package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	upperAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlphabet     = "abcdefghijklmnopqrstuvwxyz"
	digitAlphabet     = "0123456789"
	generatorSpecials = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	fullAlphabet      = upperAlphabet + lowerAlphabet + digitAlphabet + generatorSpecials

	defaultGeneratedLength = 16
)

// GenerateRandomPassword builds a password that satisfies every character class
// the policy requires. A length of zero picks max(MinLength, 16). The result is
// not guaranteed to meet MinStrengthScore; callers that need it must re-check.
func (p Policy) GenerateRandomPassword(length int) (string, error) {
	if length == 0 {
		length = max(p.MinLength, defaultGeneratedLength)
	}
	classes := p.requiredClasses()
	if length < len(classes) {
		return "", fmt.Errorf("length %d cannot hold %d required character classes", length, len(classes))
	}
	if length < p.MinLength || (p.MaxLength > 0 && length > p.MaxLength) {
		return "", fmt.Errorf("length %d outside policy bounds [%d, %d]", length, p.MinLength, p.MaxLength)
	}

	out := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(fullAlphabet)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomChar(alphabet string) (byte, error) {
	idx, err := randInt(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[idx], nil
}

func randInt(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("invalid max %d", max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(n.Int64()), nil
}
