package otp

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
	tokenPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

func TestNewVerificationCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewVerificationCode()
		require.NoError(t, err)
		require.Regexp(t, codePattern, code)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, codeMin)
		require.LessOrEqual(t, n, codeMax)
	}
}

func TestNewResetToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		token, err := NewResetToken()
		require.NoError(t, err)
		require.Regexp(t, tokenPattern, token)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}
