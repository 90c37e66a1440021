package authclient

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// State mirrors what the server knows about the current visitor.
type State struct {
	User            *User
	IsAuthenticated bool
	IsCheckingAuth  bool
	IsLoading       bool
	Error           string
	Message         string
}

// Session holds client side auth state. Every call moves IsLoading from
// true back to false and records either the outcome or an error message.
// Calls are never retried.
type Session struct {
	client *Client

	mu    sync.Mutex
	state State
	once  sync.Once
}

func NewSession(client *Client) *Session {
	return &Session{client: client, state: State{IsCheckingAuth: true}}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Init checks the session once; later calls are no-ops.
func (s *Session) Init(ctx context.Context) {
	s.once.Do(func() { s.CheckAuth(ctx) })
}

// CheckAuth never reports an error: a failed check just means signed out.
func (s *Session) CheckAuth(ctx context.Context) {
	s.update(func(st *State) {
		st.IsCheckingAuth = true
		st.Error = ""
	})
	env, err := s.client.CheckAuth(ctx)
	s.update(func(st *State) {
		st.IsCheckingAuth = false
		if err != nil {
			st.User = nil
			st.IsAuthenticated = false
			return
		}
		st.User = env.User
		st.IsAuthenticated = env.User != nil
	})
}

func (s *Session) Signup(ctx context.Context, email, password, name string) error {
	return s.call(ctx, "Error signing up", func(ctx context.Context) (*Envelope, error) {
		return s.client.Signup(ctx, email, password, name)
	}, signIn)
}

func (s *Session) VerifyEmail(ctx context.Context, code string) error {
	return s.call(ctx, "Error verifying the user", func(ctx context.Context) (*Envelope, error) {
		return s.client.VerifyEmail(ctx, code)
	}, signIn)
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	return s.call(ctx, "Error logging in", func(ctx context.Context) (*Envelope, error) {
		return s.client.Login(ctx, email, password)
	}, signIn)
}

func (s *Session) Logout(ctx context.Context) error {
	return s.call(ctx, "Error logging out", s.client.Logout, func(st *State, env *Envelope) {
		st.User = nil
		st.IsAuthenticated = false
	})
}

func (s *Session) ForgotPassword(ctx context.Context, email string) error {
	return s.call(ctx, "Error sending reset password", func(ctx context.Context) (*Envelope, error) {
		return s.client.ForgotPassword(ctx, email)
	}, keepMessage)
}

func (s *Session) ResetPassword(ctx context.Context, token, password string) error {
	return s.call(ctx, "Error resetting password", func(ctx context.Context) (*Envelope, error) {
		return s.client.ResetPassword(ctx, token, password)
	}, keepMessage)
}

func (s *Session) ResendVerification(ctx context.Context) error {
	return s.call(ctx, "Error sending verification code", s.client.ResendVerification, keepMessage)
}

func signIn(st *State, env *Envelope) {
	st.User = env.User
	st.IsAuthenticated = true
	st.Message = env.Message
}

func keepMessage(st *State, env *Envelope) {
	st.Message = env.Message
}

func (s *Session) call(ctx context.Context, fallback string, fn func(context.Context) (*Envelope, error), apply func(*State, *Envelope)) error {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
		st.Message = ""
	})
	env, err := fn(ctx)
	s.update(func(st *State) {
		st.IsLoading = false
		if err != nil {
			st.Error = errorMessage(err, fallback)
			return
		}
		apply(st, env)
	})
	return err
}

func (s *Session) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func errorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

const (
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteSignup         = "/signup"
	RouteVerifyEmail    = "/verify-email"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password/"
)

// Decision is the outcome of a route check. Wait is set while the initial
// session check is still running.
type Decision struct {
	Allow    bool
	Redirect string
	Wait     bool
}

// Access decides whether route may be shown given the current state.
func (s *Session) Access(route string) Decision {
	return Decide(s.State(), route)
}

func Decide(st State, route string) Decision {
	if st.IsCheckingAuth {
		return Decision{Wait: true}
	}
	signedIn := st.IsAuthenticated && st.User != nil && st.User.IsVerified
	switch {
	case route == RouteHome:
		if !st.IsAuthenticated {
			return Decision{Redirect: RouteLogin}
		}
		if st.User == nil || !st.User.IsVerified {
			return Decision{Redirect: RouteVerifyEmail}
		}
		return Decision{Allow: true}
	case route == RouteVerifyEmail:
		return Decision{Allow: true}
	case route == RouteSignup, route == RouteLogin, route == RouteForgotPassword,
		strings.HasPrefix(route, RouteResetPassword) && len(route) > len(RouteResetPassword):
		if signedIn {
			return Decision{Redirect: RouteHome}
		}
		return Decision{Allow: true}
	default:
		return Decision{Redirect: RouteHome}
	}
}
