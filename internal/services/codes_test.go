package services

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generatedUserCode = regexp.MustCompile(`^[A-HJ-NP-Z]{4}-[0-9]{4}$`)

func TestGenerateUserCode_Format(t *testing.T) {
	for range 1000 {
		code, err := GenerateUserCode()
		require.NoError(t, err)
		assert.Regexp(t, generatedUserCode, code)
		assert.False(t, strings.ContainsAny(code, "IO"), "code %q contains I or O", code)
	}
}

func TestGenerateUserCode_RoundTrip(t *testing.T) {
	for range 1000 {
		code, err := GenerateUserCode()
		require.NoError(t, err)

		normalized, ok := NormalizeUserCode(code)
		require.True(t, ok, "generated code %q must normalize", code)
		assert.Equal(t, code, normalized)
	}
}

func TestGenerateUserCode_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 200 {
		code, err := GenerateUserCode()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	// 24^4 * 10^4 combinations; 200 draws colliding more than once is not plausible.
	assert.GreaterOrEqual(t, len(seen), 199)
}

func TestNormalizeUserCode_Variants(t *testing.T) {
	inputs := []string{
		"ABCD-1234",
		"abcd1234",
		"AB CD 12 34",
		"abcd-1234",
		"  ABCD1234  ",
		"ab-cd-12-34",
		"ABCD\t1234",
		"aBcD--1234",
	}
	for _, in := range inputs {
		got, ok := NormalizeUserCode(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, "ABCD-1234", got, "input %q", in)
	}
}

func TestNormalizeUserCode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only separators", " - - "},
		{"too short", "ABC-1234"},
		{"too long", "ABCDE-12345"},
		{"digit in letter section", "AB1D-1234"},
		{"letter in digit section", "ABCD-12E4"},
		{"swapped sections", "1234-ABCD"},
		{"non-ascii letter", "ÄBCD-1234"},
		{"punctuation", "ABCD_1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeUserCode(tt.input)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestIsDeviceCodeFormat(t *testing.T) {
	assert.True(t, IsDeviceCodeFormat(GenerateDeviceCode()))
	assert.True(t, IsDeviceCodeFormat("123E4567-E89B-12D3-A456-426614174000"))

	for _, in := range []string{
		"",
		"not-a-uuid",
		"123e4567e89b12d3a456426614174000",
		"123e4567-e89b-12d3-a456-42661417400",
		"123e4567-e89b-12d3-a456-4266141740000",
		"g23e4567-e89b-12d3-a456-426614174000",
	} {
		assert.False(t, IsDeviceCodeFormat(in), "input %q", in)
	}
}
