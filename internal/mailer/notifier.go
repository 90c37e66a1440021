package mailer

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mauth/internal/metrics"
)

type Notifier struct {
	sender   Sender
	renderer *Renderer
	from     Address
	company  string
}

func NewNotifier(sender Sender, renderer *Renderer, from Address, company string) *Notifier {
	if company == "" {
		company = "mauth"
	}
	return &Notifier{sender: sender, renderer: renderer, from: from, company: company}
}

func (n *Notifier) SendVerificationEmail(ctx context.Context, email, code string) error {
	return n.send(ctx, email, TemplateVerification, map[string]interface{}{
		"Code":      code,
		"ExpiresIn": "24 hours",
	})
}

func (n *Notifier) SendWelcomeEmail(ctx context.Context, email, name string) error {
	return n.send(ctx, email, TemplateWelcome, map[string]interface{}{
		"Name":    name,
		"Company": n.company,
	})
}

func (n *Notifier) SendPasswordResetEmail(ctx context.Context, email, resetURL string) error {
	return n.send(ctx, email, TemplateResetRequest, map[string]interface{}{
		"ResetURL":  resetURL,
		"ExpiresIn": "1 hour",
	})
}

func (n *Notifier) SendPasswordResetSuccessEmail(ctx context.Context, email string) error {
	return n.send(ctx, email, TemplateResetSuccess, nil)
}

func (n *Notifier) send(ctx context.Context, to, template string, data interface{}) error {
	rendered, err := n.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", template, err)
	}
	err = n.sender.Send(ctx, &Message{
		From:     n.from,
		To:       to,
		Subject:  rendered.Subject,
		Text:     rendered.Text,
		HTML:     rendered.HTML,
		Category: rendered.Category,
	})
	metrics.RecordEmail(template, err)
	if err != nil {
		return fmt.Errorf("send %s email: %w", template, err)
	}
	logutil.GetLogger(ctx).Debug("email sent", zap.String("template", template), zap.String("to", to))
	return nil
}
