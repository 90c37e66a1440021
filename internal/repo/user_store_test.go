package repo

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mauth/internal/config"
	"github.com/xxxsen/mauth/internal/model"
	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
)

func newTestUser(email string, now time.Time) *model.User {
	return &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Ana",
		PasswordHash: "hash",
		LastLogin:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func uniqueEmail() string {
	return uuid.NewString() + "@example.com"
}

func runUserStoreContract(t *testing.T, store UserStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("save and find", func(t *testing.T) {
		user := newTestUser(uniqueEmail(), now)
		require.NoError(t, store.Save(ctx, user))

		got, err := store.FindByEmail(ctx, user.Email)
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.False(t, got.IsVerified)

		got, err = store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, user.Email, got.Email)

		_, err = store.FindByEmail(ctx, uniqueEmail())
		require.ErrorIs(t, err, appErr.ErrNotFound)
		_, err = store.FindByID(ctx, uuid.NewString())
		require.ErrorIs(t, err, appErr.ErrNotFound)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		email := uniqueEmail()
		require.NoError(t, store.Save(ctx, newTestUser(email, now)))
		err := store.Save(ctx, newTestUser(email, now))
		require.ErrorIs(t, err, appErr.ErrConflict)
	})

	t.Run("email is case sensitive", func(t *testing.T) {
		email := "Case-" + uniqueEmail()
		require.NoError(t, store.Save(ctx, newTestUser(email, now)))
		_, err := store.FindByEmail(ctx, "case-"+email[len("Case-"):])
		require.ErrorIs(t, err, appErr.ErrNotFound)
	})

	t.Run("save upserts", func(t *testing.T) {
		user := newTestUser(uniqueEmail(), now)
		require.NoError(t, store.Save(ctx, user))
		user.LastLogin = now.Add(time.Minute)
		user.SetResetToken("reset-"+user.ID, now.Add(time.Hour))
		require.NoError(t, store.Save(ctx, user))

		got, err := store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, got.LastLogin.Equal(now.Add(time.Minute)))
		require.NotNil(t, got.ResetPasswordToken)
	})

	t.Run("field scoped updates", func(t *testing.T) {
		user := newTestUser(uniqueEmail(), now)
		require.NoError(t, store.Save(ctx, user))

		later := now.Add(time.Hour)
		require.NoError(t, store.UpdateLastLogin(ctx, user.ID, later))
		require.NoError(t, store.SetResetToken(ctx, user.ID, "sr-"+user.ID, later.Add(time.Hour), later))
		require.NoError(t, store.SetVerificationToken(ctx, user.ID, "sv-"+user.ID, later.Add(time.Hour), later))

		got, err := store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, got.LastLogin.Equal(later))
		require.NotNil(t, got.ResetPasswordToken)
		require.Equal(t, "sr-"+user.ID, *got.ResetPasswordToken)
		require.NotNil(t, got.VerificationToken)
		require.Equal(t, "sv-"+user.ID, *got.VerificationToken)

		err = store.UpdateLastLogin(ctx, uuid.NewString(), later)
		require.ErrorIs(t, err, appErr.ErrNotFound)
		err = store.SetResetToken(ctx, uuid.NewString(), "x", later, later)
		require.ErrorIs(t, err, appErr.ErrNotFound)
	})

	t.Run("verified user gets no new code", func(t *testing.T) {
		user := newTestUser(uniqueEmail(), now)
		user.IsVerified = true
		require.NoError(t, store.Save(ctx, user))
		err := store.SetVerificationToken(ctx, user.ID, "nv-"+user.ID, now.Add(time.Hour), now)
		require.ErrorIs(t, err, appErr.ErrNotFound)
	})

	t.Run("verification token single use", func(t *testing.T) {
		user := newTestUser(uniqueEmail(), now)
		code := "v-" + user.ID
		user.SetVerificationToken(code, now.Add(24*time.Hour))
		require.NoError(t, store.Save(ctx, user))

		_, err := store.ConsumeVerificationToken(ctx, "wrong", now)
		require.ErrorIs(t, err, appErr.ErrNotFound)

		got, err := store.ConsumeVerificationToken(ctx, code, now)
		require.NoError(t, err)
		require.True(t, got.IsVerified)
		require.Nil(t, got.VerificationToken)
		require.Nil(t, got.VerificationTokenExpiresAt)

		_, err = store.ConsumeVerificationToken(ctx, code, now)
		require.ErrorIs(t, err, appErr.ErrNotFound)
	})

	t.Run("expired verification token", func(t *testing.T) {
		user := newTestUser(uniqueEmail(), now)
		code := "e-" + user.ID
		user.SetVerificationToken(code, now.Add(-time.Second))
		require.NoError(t, store.Save(ctx, user))
		_, err := store.ConsumeVerificationToken(ctx, code, now)
		require.ErrorIs(t, err, appErr.ErrNotFound)
		_, err = store.ConsumeVerificationToken(ctx, "", now)
		require.ErrorIs(t, err, appErr.ErrNotFound)
	})

	t.Run("reset token single use", func(t *testing.T) {
		user := newTestUser(uniqueEmail(), now)
		token := "r-" + user.ID
		user.SetResetToken(token, now.Add(time.Hour))
		require.NoError(t, store.Save(ctx, user))

		found, err := store.FindByResetToken(ctx, token, now)
		require.NoError(t, err)
		require.Equal(t, user.ID, found.ID)
		_, err = store.FindByResetToken(ctx, token, now.Add(2*time.Hour))
		require.ErrorIs(t, err, appErr.ErrNotFound)

		got, err := store.ConsumeResetToken(ctx, token, "new-hash", now)
		require.NoError(t, err)
		require.Equal(t, "new-hash", got.PasswordHash)
		require.Nil(t, got.ResetPasswordToken)

		_, err = store.ConsumeResetToken(ctx, token, "other", now)
		require.ErrorIs(t, err, appErr.ErrNotFound)
		_, err = store.FindByResetToken(ctx, token, now)
		require.ErrorIs(t, err, appErr.ErrNotFound)
	})

	t.Run("concurrent redemption succeeds once", func(t *testing.T) {
		user := newTestUser(uniqueEmail(), now)
		code := "c-" + user.ID
		user.SetVerificationToken(code, now.Add(time.Hour))
		require.NoError(t, store.Save(ctx, user))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.ConsumeVerificationToken(ctx, code, now); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, wins.Load())
	})

	t.Run("purge expired tokens", func(t *testing.T) {
		stale := newTestUser(uniqueEmail(), now)
		stale.SetVerificationToken("s-"+stale.ID, now.Add(-time.Minute))
		stale.SetResetToken("sr-"+stale.ID, now.Add(-time.Minute))
		require.NoError(t, store.Save(ctx, stale))
		fresh := newTestUser(uniqueEmail(), now)
		fresh.SetVerificationToken("f-"+fresh.ID, now.Add(time.Hour))
		require.NoError(t, store.Save(ctx, fresh))

		n, err := store.PurgeExpiredTokens(ctx, now)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(1))

		got, err := store.FindByID(ctx, stale.ID)
		require.NoError(t, err)
		require.Nil(t, got.VerificationToken)
		require.Nil(t, got.ResetPasswordToken)

		got, err = store.FindByID(ctx, fresh.ID)
		require.NoError(t, err)
		require.NotNil(t, got.VerificationToken)
	})
}

func TestMemoryUserStore(t *testing.T) {
	store := NewMemoryUserStore()
	runUserStoreContract(t, store)
	require.NoError(t, store.Close(context.Background()))
}

func TestMemoryUserStoreReturnsCopies(t *testing.T) {
	store := NewMemoryUserStore()
	ctx := context.Background()
	user := newTestUser("copy@example.com", time.Now())
	require.NoError(t, store.Save(ctx, user))

	got, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	got.IsVerified = true

	again, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, again.IsVerified)
}

func TestPGUserStore(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set, skipping postgres test")
	}
	store, err := Open(context.Background(), config.StoreConfig{
		Type:     config.StorePostgres,
		Postgres: config.PostgresConfig{DSN: dsn},
	})
	require.NoError(t, err)
	defer func() { _ = store.Close(context.Background()) }()
	runUserStoreContract(t, store)
}

func TestMongoUserStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set, skipping mongo test")
	}
	store, err := Open(context.Background(), config.StoreConfig{
		Type: config.StoreMongo,
		Mongo: config.MongoConfig{
			URI:        uri,
			Database:   "mauth_test",
			Collection: "users_" + uuid.NewString()[:8],
		},
	})
	require.NoError(t, err)
	defer func() { _ = store.Close(context.Background()) }()
	runUserStoreContract(t, store)
}
