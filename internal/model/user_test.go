package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublicOmitsSecrets(t *testing.T) {
	now := time.Now()
	u := &User{
		ID:           "u1",
		Email:        "a@x.com",
		Name:         "Ana",
		PasswordHash: "$2a$10$secret",
	}
	u.SetVerificationToken("123456", now.Add(time.Hour))
	u.SetResetToken("deadbeef", now.Add(time.Hour))

	raw, err := json.Marshal(u.Public())
	require.NoError(t, err)
	body := string(raw)
	require.NotContains(t, body, "secret")
	require.NotContains(t, body, "123456")
	require.NotContains(t, body, "deadbeef")
	require.Contains(t, body, `"isVerified":false`)
	require.Contains(t, body, `"email":"a@x.com"`)

	raw, err = json.Marshal(u)
	require.NoError(t, err)
	require.Equal(t, "{}", string(raw))
}

func TestCloneIsDeep(t *testing.T) {
	u := &User{ID: "u1"}
	u.SetVerificationToken("111111", time.Now())
	c := u.Clone()
	*c.VerificationToken = "222222"
	require.Equal(t, "111111", *u.VerificationToken)
	require.Nil(t, (*User)(nil).Public())
}
