// Package codes generates and validates device and user codes per RFC 8628 section 6.1
package codes

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	// DeviceCodeBytes is the entropy of a device code; it is hex encoded on the wire
	DeviceCodeBytes = 32

	// GroupSize is the number of characters on each side of the user code separator
	GroupSize = 4

	// Separator splits the user code into two groups for readability
	Separator = "-"

	// maxRepeats caps how often a character may appear in one user code
	maxRepeats = 2
)

// Charset excludes vowels and look-alike characters so user codes cannot
// spell words and survive being read aloud
const Charset = "BCDFGHJKLMNPQRSTVWXZ"

// GenerateDeviceCode returns a hex encoded random device code
func GenerateDeviceCode() (string, error) {
	b := make([]byte, DeviceCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating device code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateUserCode returns a user code in XXXX-XXXX display format
func GenerateUserCode() (string, error) {
	var builder strings.Builder
	counts := make(map[byte]int, len(Charset))

	for i := 0; i < 2*GroupSize; i++ {
		if i == GroupSize {
			builder.WriteString(Separator)
		}

		available := make([]byte, 0, len(Charset))
		for j := 0; j < len(Charset); j++ {
			if counts[Charset[j]] < maxRepeats {
				available = append(available, Charset[j])
			}
		}

		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(available))))
		if err != nil {
			return "", fmt.Errorf("generating user code: %w", err)
		}
		c := available[n.Int64()]
		counts[c]++
		builder.WriteByte(c)
	}

	code := builder.String()
	if err := ValidateUserCode(code); err != nil {
		return "", fmt.Errorf("generated invalid user code: %w", err)
	}
	return code, nil
}
