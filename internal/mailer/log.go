package mailer

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type logSender struct{}

// NewLogSender writes messages to the log instead of delivering them. Used
// in development when no mail transport is configured.
func NewLogSender() Sender {
	return logSender{}
}

func (logSender) Send(ctx context.Context, msg *Message) error {
	logutil.GetLogger(ctx).Info("mail not delivered (log sender)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("category", msg.Category),
		zap.String("text", msg.Text),
	)
	return nil
}
