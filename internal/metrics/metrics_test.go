package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	RecordHTTP("GET", "/api/auth/check-auth", "200", 5*time.Millisecond)
	RecordAuth("login", OutcomeSuccess)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["mauth_http_requests_total"])
	require.True(t, names["mauth_http_request_duration_seconds"])
	require.True(t, names["mauth_auth_events_total"])
	require.True(t, names["mauth_tokens_purged_total"])

	require.Panics(t, func() { Register(reg) })
}

func TestRecordEmail(t *testing.T) {
	ok := testutil.ToFloat64(EmailsSent.WithLabelValues("welcome", OutcomeSuccess))
	bad := testutil.ToFloat64(EmailsSent.WithLabelValues("welcome", OutcomeFailure))

	RecordEmail("welcome", nil)
	RecordEmail("welcome", errors.New("smtp down"))

	require.Equal(t, ok+1, testutil.ToFloat64(EmailsSent.WithLabelValues("welcome", OutcomeSuccess)))
	require.Equal(t, bad+1, testutil.ToFloat64(EmailsSent.WithLabelValues("welcome", OutcomeFailure)))
}

func TestRecordTokensPurgedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(TokensPurged)
	RecordTokensPurged(0)
	require.Equal(t, before, testutil.ToFloat64(TokensPurged))
	RecordTokensPurged(3)
	require.Equal(t, before+3, testutil.ToFloat64(TokensPurged))
}
