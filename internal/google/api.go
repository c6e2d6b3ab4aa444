package google

import (
	"context"
	"time"
)

// Service names used in logs, metrics and errors.
const (
	ServiceGmail    = "gmail"
	ServiceCalendar = "calendar"
)

// APIMetrics receives one observation per Google API call. It is
// satisfied by *instrumentation.Metrics.
type APIMetrics interface {
	RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration)
}

// ObserveCall reports a finished API call to m, which may be nil.
func ObserveCall(ctx context.Context, m APIMetrics, service, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := ResultSuccess
	if err != nil {
		status = "error"
	}
	m.RecordGoogleAPIOperation(ctx, service, operation, status, time.Since(start))
}
