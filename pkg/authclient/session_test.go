package authclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xxxsen/mauth/internal/handler"
	"github.com/xxxsen/mauth/internal/pkg/password"
	"github.com/xxxsen/mauth/internal/repo"
	"github.com/xxxsen/mauth/internal/service"
	"github.com/xxxsen/mauth/internal/session"
)

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
	links map[string]string
}

func (i *inbox) SendVerificationEmail(ctx context.Context, email, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[email] = code
	return nil
}

func (i *inbox) SendWelcomeEmail(ctx context.Context, email, name string) error { return nil }

func (i *inbox) SendPasswordResetEmail(ctx context.Context, email, resetURL string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.links[email] = resetURL
	return nil
}

func (i *inbox) SendPasswordResetSuccessEmail(ctx context.Context, email string) error { return nil }

func newServer(t *testing.T) (*httptest.Server, *inbox) {
	t.Helper()
	password.Cost = bcrypt.MinCost
	gin.SetMode(gin.TestMode)
	mail := &inbox{codes: map[string]string{}, links: map[string]string{}}
	sessions := session.NewManager(session.Options{Secret: []byte("client-secret"), TTL: time.Hour})
	svc := service.NewAuthService(repo.NewMemoryUserStore(), sessions, mail, service.Options{ClientURL: "http://app.test"})
	engine := gin.New()
	handler.RegisterRoutes(&engine.RouterGroup, handler.RouterDeps{
		Auth:     handler.NewAuthHandler(svc, sessions),
		Sessions: sessions,
	})
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, mail
}

func newSession(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()
	client, err := New(srv.URL+"/api/auth", srv.Client())
	require.NoError(t, err)
	return NewSession(client)
}

func TestSessionLifecycle(t *testing.T) {
	srv, mail := newServer(t)
	s := newSession(t, srv)
	ctx := context.Background()

	require.True(t, s.Access(RouteHome).Wait)
	s.Init(ctx)
	st := s.State()
	require.False(t, st.IsCheckingAuth)
	require.False(t, st.IsAuthenticated)
	require.Empty(t, st.Error)
	require.Equal(t, Decision{Redirect: RouteLogin}, s.Access(RouteHome))
	require.True(t, s.Access(RouteLogin).Allow)

	require.NoError(t, s.Signup(ctx, "a@x.com", "pw123456", "Ana"))
	st = s.State()
	require.True(t, st.IsAuthenticated)
	require.False(t, st.IsLoading)
	require.False(t, st.User.IsVerified)
	require.Equal(t, Decision{Redirect: RouteVerifyEmail}, s.Access(RouteHome))

	err := s.VerifyEmail(ctx, "000000")
	require.Error(t, err)
	require.Equal(t, "Invalid or expired verification code", s.State().Error)

	require.NoError(t, s.VerifyEmail(ctx, mail.codes["a@x.com"]))
	st = s.State()
	require.Empty(t, st.Error)
	require.True(t, st.User.IsVerified)
	require.True(t, s.Access(RouteHome).Allow)
	require.Equal(t, Decision{Redirect: RouteHome}, s.Access(RouteLogin))

	fresh := newSession(t, srv)
	fresh.Init(ctx)
	require.False(t, fresh.State().IsAuthenticated)

	require.NoError(t, s.Logout(ctx))
	require.False(t, s.State().IsAuthenticated)
	s.CheckAuth(ctx)
	require.False(t, s.State().IsAuthenticated)

	err = s.Login(ctx, "a@x.com", "wrong-pw")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "Invalid credentials", s.State().Error)

	require.NoError(t, s.Login(ctx, "a@x.com", "pw123456"))
	s.CheckAuth(ctx)
	require.True(t, s.State().IsAuthenticated)
	require.Equal(t, "a@x.com", s.State().User.Email)
}

func TestSessionsOnOneHTTPClientStaySeparate(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	shared := srv.Client()
	require.Nil(t, shared.Jar)

	first, err := New(srv.URL+"/api/auth", shared)
	require.NoError(t, err)
	second, err := New(srv.URL+"/api/auth", shared)
	require.NoError(t, err)
	require.Nil(t, shared.Jar)
	require.NotSame(t, first.Jar(), second.Jar())

	a := NewSession(first)
	require.NoError(t, a.Signup(ctx, "a@x.com", "pw123456", "Ana"))
	require.True(t, a.State().IsAuthenticated)

	b := NewSession(second)
	b.Init(ctx)
	require.False(t, b.State().IsAuthenticated)
}

func TestSessionPasswordReset(t *testing.T) {
	srv, mail := newServer(t)
	s := newSession(t, srv)
	ctx := context.Background()
	require.NoError(t, s.Signup(ctx, "a@x.com", "pw123456", "Ana"))
	require.NoError(t, s.Logout(ctx))

	require.NoError(t, s.ForgotPassword(ctx, "a@x.com"))
	require.NotEmpty(t, s.State().Message)
	link := mail.links["a@x.com"]
	token := link[strings.LastIndex(link, "/")+1:]

	_, err := s.client.ValidateResetToken(ctx, token)
	require.NoError(t, err)
	require.NoError(t, s.ResetPassword(ctx, token, "newpw1"))
	require.Equal(t, "Password reset successful", s.State().Message)
	require.Error(t, s.ResetPassword(ctx, token, "newpw2"))

	require.NoError(t, s.Login(ctx, "a@x.com", "newpw1"))
}

func TestNoResponse(t *testing.T) {
	srv, _ := newServer(t)
	s := newSession(t, srv)
	srv.Close()

	err := s.Login(context.Background(), "a@x.com", "pw123456")
	require.Error(t, err)
	require.Equal(t, msgNoResponse, s.State().Error)
	require.False(t, s.State().IsLoading)
}

func TestDecide(t *testing.T) {
	verified := &User{IsVerified: true}
	unverified := &User{}
	for _, tc := range []struct {
		name  string
		state State
		route string
		want  Decision
	}{
		{"checking", State{IsCheckingAuth: true}, RouteHome, Decision{Wait: true}},
		{"guest home", State{}, RouteHome, Decision{Redirect: RouteLogin}},
		{"unverified home", State{IsAuthenticated: true, User: unverified}, RouteHome, Decision{Redirect: RouteVerifyEmail}},
		{"verified home", State{IsAuthenticated: true, User: verified}, RouteHome, Decision{Allow: true}},
		{"guest signup", State{}, RouteSignup, Decision{Allow: true}},
		{"unverified login", State{IsAuthenticated: true, User: unverified}, RouteLogin, Decision{Allow: true}},
		{"verified forgot", State{IsAuthenticated: true, User: verified}, RouteForgotPassword, Decision{Redirect: RouteHome}},
		{"verified reset", State{IsAuthenticated: true, User: verified}, "/reset-password/abc", Decision{Redirect: RouteHome}},
		{"guest reset", State{}, "/reset-password/abc", Decision{Allow: true}},
		{"verify page", State{}, RouteVerifyEmail, Decision{Allow: true}},
		{"unknown", State{}, "/nowhere", Decision{Redirect: RouteHome}},
		{"reset without token", State{}, "/reset-password/", Decision{Redirect: RouteHome}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Decide(tc.state, tc.route))
		})
	}
}
