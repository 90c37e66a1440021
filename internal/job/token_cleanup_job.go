package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mauth/internal/metrics"
)

type tokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenCleanupJob clears verification codes and reset tokens past their
// expiry. Lookups already ignore them; this only keeps the records tidy.
type TokenCleanupJob struct {
	users tokenPurger
	now   func() time.Time
}

func NewTokenCleanupJob(users tokenPurger) *TokenCleanupJob {
	return &TokenCleanupJob{users: users, now: time.Now}
}

func (j *TokenCleanupJob) Name() string {
	return "token_cleanup"
}

func (j *TokenCleanupJob) Run(ctx context.Context) error {
	if j.users == nil {
		return nil
	}
	cleared, err := j.users.PurgeExpiredTokens(ctx, j.now().UTC())
	if err != nil {
		return err
	}
	metrics.RecordTokensPurged(cleared)
	if cleared > 0 {
		logutil.GetLogger(ctx).Info("expired tokens cleared", zap.Int64("count", cleared))
	}
	return nil
}
