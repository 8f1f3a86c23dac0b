package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pedalsync/linkgate/internal/util"

	"github.com/google/uuid"
)

// userCodeLetters is A-Z without I and O, which read as 1 and 0.
const userCodeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"

var (
	userCodePattern   = regexp.MustCompile(`^[A-Z]{4}[0-9]{4}$`)
	deviceCodePattern = regexp.MustCompile(
		`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`,
	)
)

// GenerateUserCode returns a code such as "WDJB-4821": four letters drawn
// from userCodeLetters and four digits, each from one crypto/rand byte.
func GenerateUserCode() (string, error) {
	buf, err := util.CryptoRandomBytes(8)
	if err != nil {
		return "", fmt.Errorf("failed to generate user code: %w", err)
	}

	var b strings.Builder
	b.Grow(9)
	for _, v := range buf[:4] {
		b.WriteByte(userCodeLetters[int(v)%len(userCodeLetters)])
	}
	b.WriteByte('-')
	for _, v := range buf[4:] {
		b.WriteByte('0' + v%10)
	}
	return b.String(), nil
}

// GenerateDeviceCode returns a random UUID used only as an opaque bearer.
func GenerateDeviceCode() string {
	return uuid.NewString()
}

// NormalizeUserCode accepts what a person might type ("abcd1234",
// "AB CD-12 34") and returns the canonical "ABCD-1234" form. The second
// result is false when the input cannot be a user code.
func NormalizeUserCode(input string) (string, bool) {
	compact := strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, input)

	if !userCodePattern.MatchString(compact) {
		return "", false
	}
	return compact[:4] + "-" + compact[4:], true
}

// IsDeviceCodeFormat reports whether s has the 36-character UUID shape.
func IsDeviceCodeFormat(s string) bool {
	return deviceCodePattern.MatchString(s)
}
