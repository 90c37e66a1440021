package password

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	Cost = bcrypt.MinCost
	hash, err := Hash("pw123456")
	require.NoError(t, err)
	require.NotEqual(t, "pw123456", hash)
	require.NoError(t, Compare(hash, "pw123456"))
	require.Error(t, Compare(hash, "pw1234567"))

	other, err := Hash("pw123456")
	require.NoError(t, err)
	require.NotEqual(t, hash, other)
}
