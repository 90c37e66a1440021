package repo

import (
	"context"
	"time"

	"github.com/xxxsen/mauth/internal/model"
)

// UserStore persists user records. Lookups that pair a one-time token with
// its expiry run as a single query, and the Consume methods clear the token
// in the same statement that applies the change it authorizes.
//
// Mutations after creation go through field scoped updates, never a
// read-modify-Save, so they cannot resurrect a token consumed concurrently.
type UserStore interface {
	// Save upserts the full record by ID. A different record already
	// holding the email yields appErr.ErrConflict.
	Save(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// SetVerificationToken replaces the code of a user that is still
	// unverified; verified users yield appErr.ErrNotFound.
	SetVerificationToken(ctx context.Context, id, token string, expiresAt, now time.Time) error
	SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error
	// ConsumeVerificationToken marks the owner of an unexpired code as
	// verified and clears the code.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*model.User, error)
	// ConsumeResetToken replaces the password hash of the owner of an
	// unexpired reset token and clears the token.
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*model.User, error)
	// PurgeExpiredTokens clears every verification and reset token whose
	// expiry is not after now and returns the number of tokens cleared.
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	Close(ctx context.Context) error
}
