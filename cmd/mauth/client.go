package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xxxsen/mauth/pkg/authclient"
)

type clientFlags struct {
	server     string
	cookieFile string
	timeout    time.Duration
}

func newClientCmd() *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "client",
		Short: "talk to a running mauth server",
	}
	home, _ := os.UserHomeDir()
	cmd.PersistentFlags().StringVar(&flags.server, "server", "http://localhost:5000/api/auth", "auth API base url")
	cmd.PersistentFlags().StringVar(&flags.cookieFile, "cookie-file", filepath.Join(home, ".mauth-session.json"), "where the session cookie is kept between calls")
	cmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 10*time.Second, "request timeout")

	op := func(use, short string, nargs int, fn func(ctx context.Context, s *authclient.Session, args []string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runClientOp(cmd.Context(), flags, args, fn)
			},
		}
	}
	cmd.AddCommand(
		op("signup <email> <password> <name>", "create an account", 3, func(ctx context.Context, s *authclient.Session, a []string) error {
			return s.Signup(ctx, a[0], a[1], a[2])
		}),
		op("verify <code>", "redeem the emailed verification code", 1, func(ctx context.Context, s *authclient.Session, a []string) error {
			return s.VerifyEmail(ctx, a[0])
		}),
		op("resend", "email a new verification code", 0, func(ctx context.Context, s *authclient.Session, a []string) error {
			return s.ResendVerification(ctx)
		}),
		op("login <email> <password>", "sign in", 2, func(ctx context.Context, s *authclient.Session, a []string) error {
			return s.Login(ctx, a[0], a[1])
		}),
		op("logout", "sign out", 0, func(ctx context.Context, s *authclient.Session, a []string) error {
			return s.Logout(ctx)
		}),
		op("forgot <email>", "request a password reset link", 1, func(ctx context.Context, s *authclient.Session, a []string) error {
			return s.ForgotPassword(ctx, a[0])
		}),
		op("reset <token> <password>", "set a new password with a reset token", 2, func(ctx context.Context, s *authclient.Session, a []string) error {
			return s.ResetPassword(ctx, a[0], a[1])
		}),
		op("check", "show the current session", 0, func(ctx context.Context, s *authclient.Session, a []string) error {
			s.CheckAuth(ctx)
			return nil
		}),
		op("access <route>", "show whether a client route may be shown", 1, func(ctx context.Context, s *authclient.Session, a []string) error {
			s.Init(ctx)
			return printJSON(s.Access(a[0]))
		}),
	)
	return cmd
}

func runClientOp(ctx context.Context, flags *clientFlags, args []string, fn func(context.Context, *authclient.Session, []string) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := authclient.New(flags.server, &http.Client{Timeout: flags.timeout})
	if err != nil {
		return err
	}
	if err := loadCookies(client, flags.cookieFile); err != nil {
		return err
	}
	s := authclient.NewSession(client)
	opErr := fn(ctx, s, args)
	if err := saveCookies(client, flags.cookieFile); err != nil {
		return err
	}
	st := s.State()
	if err := printJSON(st); err != nil {
		return err
	}
	if opErr != nil {
		var apiErr *authclient.APIError
		if errors.As(opErr, &apiErr) {
			return fmt.Errorf("%s", st.Error)
		}
		return opErr
	}
	return nil
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func loadCookies(client *authclient.Client, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cookie file: %w", err)
	}
	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("decode cookie file: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	client.Jar().SetCookies(client.BaseURL(), cookies)
	return nil
}

func saveCookies(client *authclient.Client, path string) error {
	cookies := client.Jar().Cookies(client.BaseURL())
	if len(cookies) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cookie file: %w", err)
		}
		return nil
	}
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
