package mailer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/xxxsen/mauth/internal/config"
)

type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Message struct {
	From     Address
	To       string
	Subject  string
	Text     string
	HTML     string
	Category string
}

type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

func NewSender(cfg config.MailConfig) (Sender, error) {
	switch cfg.Type {
	case config.MailSMTP:
		return NewSMTPSender(cfg), nil
	case config.MailAPI:
		client := &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}
		return NewAPISender(cfg.APIBaseURL, cfg.APIToken, client), nil
	case config.MailLog:
		return NewLogSender(), nil
	default:
		return nil, fmt.Errorf("unknown mail type %q", cfg.Type)
	}
}
