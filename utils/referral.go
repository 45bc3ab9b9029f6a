package utils

import (
	"crypto/rand"
	"encoding/base32"
	"regexp"
	"strings"
)

const codePrefix = "REF"

// GenerateAssignmentCode generates a shareable referral code.
// Format: REF-{RANDOM} where RANDOM is 6 alphanumeric characters.
// Example: REF-ABC123
func GenerateAssignmentCode() (string, error) {
	// 4 random bytes give us 6 characters in base32
	randomBytes := make([]byte, 4)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	randomStr := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	randomStr = randomStr[:6]

	randomStr = strings.ToUpper(randomStr)
	randomStr = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, randomStr)

	if len(randomStr) < 6 {
		randomStr = randomStr + strings.Repeat("0", 6-len(randomStr))
	}

	return codePrefix + "-" + randomStr, nil
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{2,30}[a-z0-9]$`)

// ValidSlug reports whether a custom slug is shareable: lowercase
// alphanumerics and dashes, 4-32 characters, no leading/trailing dash.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}
