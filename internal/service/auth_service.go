package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mauth/internal/metrics"
	"github.com/xxxsen/mauth/internal/model"
	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
	"github.com/xxxsen/mauth/internal/pkg/otp"
	"github.com/xxxsen/mauth/internal/pkg/password"
	"github.com/xxxsen/mauth/internal/repo"
	"github.com/xxxsen/mauth/internal/session"
)

const (
	MsgSignup             = "User created successfully"
	MsgSignupMailFailed   = "User created successfully, but the verification code could not be sent. Request a new one."
	MsgEmailVerified      = "Email verified successfully"
	MsgLoggedIn           = "Logged in successfully"
	MsgLoggedOut          = "Successfully logged out"
	MsgResetLinkSent      = "If an account exists for that email, a password reset link has been sent"
	MsgPasswordReset      = "Password reset successful"
	MsgAuthenticated      = "User authenticated"
	MsgVerificationResent = "Verification code sent to your email"
	MsgResetTokenValid    = "Reset token is valid"
)

const (
	msgInvalidCode       = "Invalid or expired verification code"
	msgInvalidResetToken = "Invalid or expired reset token"
	msgInvalidEmail      = "Invalid email address"
	msgPasswordTooShort  = "Password must be at least 6 characters"
	msgPasswordTooLong   = "Password must be at most 72 bytes"
	msgAlreadyVerified   = "Email already verified"
	msgInvalidUser       = "Invalid user"

	defaultVerificationTTL = 24 * time.Hour
	defaultResetTTL        = time.Hour
)

// Notifier delivers the four account emails.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, code string) error
	SendWelcomeEmail(ctx context.Context, email, name string) error
	SendPasswordResetEmail(ctx context.Context, email, resetURL string) error
	SendPasswordResetSuccessEmail(ctx context.Context, email string) error
}

type Options struct {
	ClientURL       string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	Now             func() time.Time
}

// Result is what every auth operation hands back on success. Session is set
// only by the operations that log the user in.
type Result struct {
	Message string
	User    *model.PublicUser
	Session *session.Credential
}

type AuthService struct {
	users    repo.UserStore
	sessions *session.Manager
	notifier Notifier
	validate *validator.Validate
	opts     Options
}

func NewAuthService(users repo.UserStore, sessions *session.Manager, notifier Notifier, opts Options) *AuthService {
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = defaultVerificationTTL
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = defaultResetTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.ClientURL = strings.TrimRight(opts.ClientURL, "/")
	return &AuthService{
		users:    users,
		sessions: sessions,
		notifier: notifier,
		validate: validator.New(),
		opts:     opts,
	}
}

type signupInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Name     string `validate:"required"`
}

type loginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type resetInput struct {
	Token    string `validate:"required"`
	Password string `validate:"required,min=6"`
}

func (s *AuthService) Signup(ctx context.Context, email, plainPassword, name string) (res *Result, err error) {
	defer func() { record("signup", err) }()
	in := signupInput{Email: strings.TrimSpace(email), Password: plainPassword, Name: strings.TrimSpace(name)}
	if err := s.check(in); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, appErr.ErrConflict
	} else if !appErr.IsNotFound(err) {
		return nil, appErr.Server(err)
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, appErr.Server(err)
	}
	code, err := otp.NewVerificationCode()
	if err != nil {
		return nil, appErr.Server(err)
	}
	now := s.now()
	user := &model.User{
		ID:           newID(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		LastLogin:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.SetVerificationToken(code, now.Add(s.opts.VerificationTTL))
	if err := s.users.Save(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, appErr.ErrConflict
		}
		return nil, appErr.Server(err)
	}
	cred, err := s.sessions.Issue(user.ID, now)
	if err != nil {
		return nil, appErr.Server(err)
	}

	message := MsgSignup
	if err := s.notifier.SendVerificationEmail(ctx, user.Email, code); err != nil {
		logutil.GetLogger(ctx).Error("send verification email failed",
			zap.String("user_id", user.ID), zap.Error(err))
		message = MsgSignupMailFailed
	}
	return &Result{Message: message, User: user.Public(), Session: cred}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, code string) (res *Result, err error) {
	defer func() { record("verify_email", err) }()
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, appErr.New(appErr.KindValidation, "Verification code is required")
	}
	user, err := s.users.ConsumeVerificationToken(ctx, code, s.now())
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.New(appErr.KindNotFoundOrExpired, msgInvalidCode)
		}
		return nil, appErr.Server(err)
	}
	if err := s.notifier.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
		logutil.GetLogger(ctx).Error("send welcome email failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}
	return &Result{Message: MsgEmailVerified, User: user.Public()}, nil
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (res *Result, err error) {
	defer func() { record("login", err) }()
	in := loginInput{Email: strings.TrimSpace(email), Password: plainPassword}
	if err := s.check(in); err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrInvalidCredentials
		}
		return nil, appErr.Server(err)
	}
	if err := password.Compare(user.PasswordHash, in.Password); err != nil {
		return nil, appErr.ErrInvalidCredentials
	}
	now := s.now()
	cred, err := s.sessions.Issue(user.ID, now)
	if err != nil {
		return nil, appErr.Server(err)
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, appErr.Server(err)
	}
	user.LastLogin = now
	user.UpdatedAt = now
	return &Result{Message: MsgLoggedIn, User: user.Public(), Session: cred}, nil
}

// Logout has no server side state to drop; the caller clears the cookie.
func (s *AuthService) Logout(ctx context.Context) (*Result, error) {
	record("logout", nil)
	return &Result{Message: MsgLoggedOut}, nil
}

// ForgotPassword answers the same way whether or not the email is
// registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (res *Result, err error) {
	defer func() { record("forgot_password", err) }()
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, appErr.New(appErr.KindValidation, "Email is required")
	}
	done := &Result{Message: MsgResetLinkSent}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			logutil.GetLogger(ctx).Debug("password reset requested for unknown email")
			return done, nil
		}
		return nil, appErr.Server(err)
	}
	token, err := otp.NewResetToken()
	if err != nil {
		return nil, appErr.Server(err)
	}
	now := s.now()
	if err := s.users.SetResetToken(ctx, user.ID, token, now.Add(s.opts.ResetTTL), now); err != nil {
		return nil, appErr.Server(err)
	}
	if err := s.notifier.SendPasswordResetEmail(ctx, user.Email, s.ResetURL(token)); err != nil {
		logutil.GetLogger(ctx).Error("send password reset email failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}
	return done, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (res *Result, err error) {
	defer func() { record("reset_password", err) }()
	in := resetInput{Token: strings.TrimSpace(token), Password: newPassword}
	if in.Token == "" {
		return nil, appErr.New(appErr.KindNotFoundOrExpired, msgInvalidResetToken)
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, appErr.Server(err)
	}
	user, err := s.users.ConsumeResetToken(ctx, in.Token, hash, s.now())
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.New(appErr.KindNotFoundOrExpired, msgInvalidResetToken)
		}
		return nil, appErr.Server(err)
	}
	if err := s.notifier.SendPasswordResetSuccessEmail(ctx, user.Email); err != nil {
		logutil.GetLogger(ctx).Error("send password reset success email failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}
	return &Result{Message: MsgPasswordReset}, nil
}

func (s *AuthService) ValidateResetToken(ctx context.Context, token string) (*Result, error) {
	token = strings.TrimSpace(token)
	if _, err := s.users.FindByResetToken(ctx, token, s.now()); err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.New(appErr.KindNotFoundOrExpired, msgInvalidResetToken)
		}
		return nil, appErr.Server(err)
	}
	return &Result{Message: MsgResetTokenValid}, nil
}

func (s *AuthService) CheckSession(ctx context.Context, token string) (*Result, error) {
	user, err := s.currentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Result{Message: MsgAuthenticated, User: user.Public()}, nil
}

// ResendVerification mints a new code for the signed-in user, replacing the
// previous one.
func (s *AuthService) ResendVerification(ctx context.Context, token string) (res *Result, err error) {
	defer func() { record("resend_verification", err) }()
	user, err := s.currentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, appErr.New(appErr.KindValidation, msgAlreadyVerified)
	}
	code, err := otp.NewVerificationCode()
	if err != nil {
		return nil, appErr.Server(err)
	}
	now := s.now()
	if err := s.users.SetVerificationToken(ctx, user.ID, code, now.Add(s.opts.VerificationTTL), now); err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.New(appErr.KindValidation, msgAlreadyVerified)
		}
		return nil, appErr.Server(err)
	}
	if err := s.notifier.SendVerificationEmail(ctx, user.Email, code); err != nil {
		return nil, appErr.Server(err)
	}
	return &Result{Message: MsgVerificationResent, User: user.Public()}, nil
}

func (s *AuthService) ResetURL(token string) string {
	return s.opts.ClientURL + "/reset-password/" + token
}

func (s *AuthService) currentUser(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.sessions.Verify(token, s.now())
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.New(appErr.KindUnauthorized, msgInvalidUser)
		}
		return nil, appErr.Server(err)
	}
	return user, nil
}

func (s *AuthService) now() time.Time {
	return s.opts.Now().UTC().Truncate(time.Millisecond)
}

// check runs struct validation and turns the first failure into a
// client-facing validation error.
func (s *AuthService) check(in interface{}) error {
	err := s.validate.Struct(in)
	if err == nil {
		return checkPasswordBytes(in)
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErr.Server(err)
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return appErr.ErrValidation
		}
	}
	switch fe := fieldErrs[0]; {
	case fe.Field() == "Email":
		return appErr.New(appErr.KindValidation, msgInvalidEmail)
	case fe.Field() == "Password" && fe.Tag() == "min":
		return appErr.New(appErr.KindValidation, msgPasswordTooShort)
	default:
		return appErr.ErrValidation
	}
}

func checkPasswordBytes(in interface{}) error {
	var pw string
	switch v := in.(type) {
	case signupInput:
		pw = v.Password
	case resetInput:
		pw = v.Password
	default:
		return nil
	}
	if len(pw) > password.MaxBytes {
		return appErr.New(appErr.KindValidation, msgPasswordTooLong)
	}
	return nil
}

func record(event string, err error) {
	if err == nil {
		metrics.RecordAuth(event, metrics.OutcomeSuccess)
		return
	}
	metrics.RecordAuth(event, appErr.KindOf(err).String())
}
