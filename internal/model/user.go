package model

import "time"

// User is the stored record. It must not be serialized to clients; use
// Public to get the outward view.
type User struct {
	ID           string `json:"-" bson:"_id" db:"id"`
	Email        string `json:"-" bson:"email" db:"email"`
	Name         string `json:"-" bson:"name" db:"name"`
	PasswordHash string `json:"-" bson:"password" db:"password_hash"`
	IsVerified   bool   `json:"-" bson:"isVerified" db:"is_verified"`

	VerificationToken          *string    `json:"-" bson:"verificationToken,omitempty" db:"verification_token"`
	VerificationTokenExpiresAt *time.Time `json:"-" bson:"verificationTokenExpiresAt,omitempty" db:"verification_token_expires_at"`
	ResetPasswordToken         *string    `json:"-" bson:"resetPasswordToken,omitempty" db:"reset_password_token"`
	ResetPasswordExpiresAt     *time.Time `json:"-" bson:"resetPasswordExpiresAt,omitempty" db:"reset_password_expires_at"`

	LastLogin time.Time `json:"-" bson:"lastLogin" db:"last_login"`
	CreatedAt time.Time `json:"-" bson:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"-" bson:"updatedAt" db:"updated_at"`
}

// PublicUser has no secret fields at all, so nothing can leak by accident.
type PublicUser struct {
	ID         string    `json:"_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"isVerified"`
	LastLogin  time.Time `json:"lastLogin"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		IsVerified: u.IsVerified,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.VerificationToken = cloneString(u.VerificationToken)
	c.VerificationTokenExpiresAt = cloneTime(u.VerificationTokenExpiresAt)
	c.ResetPasswordToken = cloneString(u.ResetPasswordToken)
	c.ResetPasswordExpiresAt = cloneTime(u.ResetPasswordExpiresAt)
	return &c
}

func (u *User) SetVerificationToken(token string, expiresAt time.Time) {
	u.VerificationToken = &token
	u.VerificationTokenExpiresAt = &expiresAt
}

func (u *User) SetResetToken(token string, expiresAt time.Time) {
	u.ResetPasswordToken = &token
	u.ResetPasswordExpiresAt = &expiresAt
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
