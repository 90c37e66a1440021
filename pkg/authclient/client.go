package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	msgNoResponse = "No response from server"
	msgUnexpected = "Unexpected error from server"
)

type User struct {
	ID         string    `json:"_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"isVerified"`
	LastLogin  time.Time `json:"lastLogin"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
}

// APIError is a non-2xx answer from the server. Status is zero when no
// response arrived at all.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Client speaks the /api/auth REST surface. The session cookie lives in the
// http.Client cookie jar.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client rooted at baseURL (for example
// http://localhost:5000/api/auth). When httpClient has no cookie jar the
// client works on a copy of it with a jar of its own, so clients built from
// one *http.Client never share a session.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		own := *httpClient
		own.Jar = jar
		httpClient = &own
	}
	return &Client{base: base, http: httpClient}, nil
}

func (c *Client) BaseURL() *url.URL {
	return c.base
}

// Jar exposes the cookie jar so callers can persist the session.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

func (c *Client) Signup(ctx context.Context, email, password, name string) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/signup", map[string]string{"email": email, "password": password, "name": name})
}

func (c *Client) VerifyEmail(ctx context.Context, code string) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/verify-email", map[string]interface{}{
		"code": map[string]string{"verificationCode": code},
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password})
}

func (c *Client) Logout(ctx context.Context) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/logout", nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email})
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/reset-password/"+url.PathEscape(token), map[string]string{"password": password})
}

func (c *Client) ValidateResetToken(ctx context.Context, token string) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, "/reset-password/"+url.PathEscape(token), nil)
}

func (c *Client) ResendVerification(ctx context.Context) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/resend-verification", nil)
}

func (c *Client) CheckAuth(ctx context.Context) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, "/check-auth", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Message: msgNoResponse, Err: err}
	}
	defer resp.Body.Close()

	var env Envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := env.Message
		if decodeErr != nil || message == "" {
			message = msgUnexpected
		}
		return nil, &APIError{Status: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: msgUnexpected, Err: decodeErr}
	}
	return &env, nil
}
