package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateNumericCode returns a uniformly random string of length decimal digits
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length %d", length)
	}
	code := make([]byte, length)
	ten := big.NewInt(10)
	for i := range code {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate code digit: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}

// TruncateTime drops precision below what MongoDB stores for dates
func TruncateTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// MaskPhone hides all but the last four digits for logging
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		switch {
		case i >= len(phone)-4 || phone[i] == '+':
			masked[i] = phone[i]
		default:
			masked[i] = '*'
		}
	}
	return string(masked)
}
