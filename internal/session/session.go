package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
	"github.com/xxxsen/mauth/internal/pkg/jwt"
)

// Credential is a signed session token and the instant it stops being valid.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

type Options struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Domain     string
	Secure     bool
}

// Manager mints and checks session credentials and moves them in and out of
// the HTTP-only cookie.
type Manager struct {
	opts Options
}

func NewManager(opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "token"
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	return &Manager{opts: opts}
}

func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

func (m *Manager) Issue(userID string, now time.Time) (*Credential, error) {
	token, err := jwt.GenerateToken(userID, m.opts.Secret, m.opts.TTL, now)
	if err != nil {
		return nil, err
	}
	return &Credential{Token: token, ExpiresAt: now.Add(m.opts.TTL)}, nil
}

// Verify returns the user ID bound to token, or appErr.ErrUnauthorized when
// the token is missing, forged or expired at now.
func (m *Manager) Verify(token string, now time.Time) (string, error) {
	if token == "" {
		return "", appErr.New(appErr.KindUnauthorized, "Unauthorized - no token provided")
	}
	claims, err := jwt.ParseToken(token, m.opts.Secret, now)
	if err != nil {
		return "", appErr.Wrap(appErr.KindUnauthorized, "Unauthorized - invalid token", err)
	}
	return claims.UserID, nil
}

func (m *Manager) Read(c *gin.Context) string {
	value, err := c.Cookie(m.opts.CookieName)
	if err != nil {
		return ""
	}
	return value
}

func (m *Manager) Write(c *gin.Context, cred *Credential) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    cred.Token,
		Path:     "/",
		Domain:   m.opts.Domain,
		MaxAge:   int(m.opts.TTL / time.Second),
		Expires:  cred.ExpiresAt,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *Manager) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.opts.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
