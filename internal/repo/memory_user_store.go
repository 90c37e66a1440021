package repo

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/mauth/internal/model"
	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
)

type MemoryUserStore struct {
	mu      sync.Mutex
	byID    map[string]*model.User
	byEmail map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryUserStore) Save(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID, ok := s.byEmail[user.Email]; ok && ownerID != user.ID {
		return appErr.ErrConflict
	}
	if prev, ok := s.byID[user.ID]; ok && prev.Email != user.Email {
		delete(s.byEmail, prev.Email)
	}
	s.byID[user.ID] = user.Clone()
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return user.Clone(), nil
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryUserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return appErr.ErrNotFound
	}
	user.LastLogin = at
	user.UpdatedAt = at
	return nil
}

func (s *MemoryUserStore) SetVerificationToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok || user.IsVerified {
		return appErr.ErrNotFound
	}
	user.SetVerificationToken(token, expiresAt)
	user.UpdatedAt = now
	return nil
}

func (s *MemoryUserStore) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return appErr.ErrNotFound
	}
	user.SetResetToken(token, expiresAt)
	user.UpdatedAt = now
	return nil
}

func (s *MemoryUserStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.matchLocked(token, now, resetTokenOf)
	if user == nil {
		return nil, appErr.ErrNotFound
	}
	return user.Clone(), nil
}

func (s *MemoryUserStore) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.matchLocked(token, now, verificationTokenOf)
	if user == nil {
		return nil, appErr.ErrNotFound
	}
	user.IsVerified = true
	user.VerificationToken = nil
	user.VerificationTokenExpiresAt = nil
	user.UpdatedAt = now
	return user.Clone(), nil
}

func (s *MemoryUserStore) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.matchLocked(token, now, resetTokenOf)
	if user == nil {
		return nil, appErr.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetPasswordToken = nil
	user.ResetPasswordExpiresAt = nil
	user.UpdatedAt = now
	return user.Clone(), nil
}

func (s *MemoryUserStore) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cleared int64
	for _, user := range s.byID {
		if user.VerificationTokenExpiresAt != nil && !user.VerificationTokenExpiresAt.After(now) {
			user.VerificationToken = nil
			user.VerificationTokenExpiresAt = nil
			cleared++
		}
		if user.ResetPasswordExpiresAt != nil && !user.ResetPasswordExpiresAt.After(now) {
			user.ResetPasswordToken = nil
			user.ResetPasswordExpiresAt = nil
			cleared++
		}
	}
	return cleared, nil
}

func (s *MemoryUserStore) Close(ctx context.Context) error {
	return nil
}

func (s *MemoryUserStore) matchLocked(token string, now time.Time, pick func(*model.User) (*string, *time.Time)) *model.User {
	if token == "" {
		return nil
	}
	for _, user := range s.byID {
		value, expiresAt := pick(user)
		if value == nil || expiresAt == nil {
			continue
		}
		if *value == token && expiresAt.After(now) {
			return user
		}
	}
	return nil
}

func verificationTokenOf(u *model.User) (*string, *time.Time) {
	return u.VerificationToken, u.VerificationTokenExpiresAt
}

func resetTokenOf(u *model.User) (*string, *time.Time) {
	return u.ResetPasswordToken, u.ResetPasswordExpiresAt
}
