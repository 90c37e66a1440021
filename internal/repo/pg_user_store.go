package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/mauth/internal/model"
	"github.com/xxxsen/mauth/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
)

const usersTable = "users"

var userColumns = []string{
	"id", "email", "name", "password_hash", "is_verified",
	"verification_token", "verification_token_expires_at",
	"reset_password_token", "reset_password_expires_at",
	"last_login", "created_at", "updated_at",
}

var returningUser = " RETURNING " + strings.Join(userColumns, ", ")

type PGUserStore struct {
	db *sqlx.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: sqlx.NewDb(db, "postgres")}
}

func (r *PGUserStore) Save(ctx context.Context, user *model.User) error {
	sqlStr := "INSERT INTO users (" + strings.Join(userColumns, ", ") + ") VALUES (" +
		":" + strings.Join(userColumns, ", :") + ") ON CONFLICT (id) DO UPDATE SET " +
		"email = EXCLUDED.email, name = EXCLUDED.name, password_hash = EXCLUDED.password_hash, " +
		"is_verified = EXCLUDED.is_verified, verification_token = EXCLUDED.verification_token, " +
		"verification_token_expires_at = EXCLUDED.verification_token_expires_at, " +
		"reset_password_token = EXCLUDED.reset_password_token, " +
		"reset_password_expires_at = EXCLUDED.reset_password_expires_at, " +
		"last_login = EXCLUDED.last_login, updated_at = EXCLUDED.updated_at"
	if _, err := r.db.NamedExecContext(ctx, sqlStr, user); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *PGUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, map[string]interface{}{"id": id})
}

func (r *PGUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, map[string]interface{}{"email": email})
}

func (r *PGUserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx,
		map[string]interface{}{"id": id},
		map[string]interface{}{"last_login": at, "updated_at": at},
	)
}

func (r *PGUserStore) SetVerificationToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	return r.updateOne(ctx,
		map[string]interface{}{"id": id, "is_verified": false},
		map[string]interface{}{
			"verification_token":            token,
			"verification_token_expires_at": expiresAt,
			"updated_at":                    now,
		},
	)
}

func (r *PGUserStore) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	return r.updateOne(ctx,
		map[string]interface{}{"id": id},
		map[string]interface{}{
			"reset_password_token":      token,
			"reset_password_expires_at": expiresAt,
			"updated_at":                now,
		},
	)
}

func (r *PGUserStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, appErr.ErrNotFound
	}
	return r.findOne(ctx, map[string]interface{}{
		"reset_password_token":        token,
		"reset_password_expires_at >": now,
	})
}

func (r *PGUserStore) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, appErr.ErrNotFound
	}
	where := map[string]interface{}{
		"verification_token":              token,
		"verification_token_expires_at >": now,
	}
	update := map[string]interface{}{
		"is_verified":                   true,
		"verification_token":            nil,
		"verification_token_expires_at": nil,
		"updated_at":                    now,
	}
	return r.updateReturning(ctx, where, update)
}

func (r *PGUserStore) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, appErr.ErrNotFound
	}
	where := map[string]interface{}{
		"reset_password_token":        token,
		"reset_password_expires_at >": now,
	}
	update := map[string]interface{}{
		"password_hash":             passwordHash,
		"reset_password_token":      nil,
		"reset_password_expires_at": nil,
		"updated_at":                now,
	}
	return r.updateReturning(ctx, where, update)
}

func (r *PGUserStore) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	verified, err := r.execUpdate(ctx,
		map[string]interface{}{"verification_token_expires_at <=": now},
		map[string]interface{}{"verification_token": nil, "verification_token_expires_at": nil},
	)
	if err != nil {
		return 0, err
	}
	reset, err := r.execUpdate(ctx,
		map[string]interface{}{"reset_password_expires_at <=": now},
		map[string]interface{}{"reset_password_token": nil, "reset_password_expires_at": nil},
	)
	if err != nil {
		return verified, err
	}
	return verified + reset, nil
}

func (r *PGUserStore) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *PGUserStore) findOne(ctx context.Context, where map[string]interface{}) (*model.User, error) {
	where["_limit"] = []uint{0, 1}
	sqlStr, args, err := builder.BuildSelect(usersTable, where, userColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var user model.User
	if err := r.db.GetContext(ctx, &user, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// updateReturning runs a conditional UPDATE and reads the row back in the
// same statement, so two callers racing on one token cannot both win.
func (r *PGUserStore) updateReturning(ctx context.Context, where, update map[string]interface{}) (*model.User, error) {
	sqlStr, args, err := builder.BuildUpdate(usersTable, where, update)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+returningUser, args)
	var user model.User
	if err := r.db.GetContext(ctx, &user, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PGUserStore) updateOne(ctx context.Context, where, update map[string]interface{}) error {
	affected, err := r.execUpdate(ctx, where, update)
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *PGUserStore) execUpdate(ctx context.Context, where, update map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildUpdate(usersTable, where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
