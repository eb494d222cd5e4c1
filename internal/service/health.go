package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/applysync/internal/metrics"
)

// StatusUp is the only status the reporter emits; the process answering at
// all is what "up" means.
const StatusUp = "UP"

// DefaultHealthTimeout bounds the store ping in Report.
const DefaultHealthTimeout = 2 * time.Second

// Pinger is the slice of the repository the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReport is a point-in-time snapshot.
type HealthReport struct {
	Status         string
	Timestamp      time.Time
	StoreConnected bool
}

// HealthReporter checks store connectivity on demand.
type HealthReporter struct {
	store   Pinger
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewHealthReporter(store Pinger, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *HealthReporter {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	return &HealthReporter{
		store:   store,
		timeout: timeout,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Report never fails. A ping error or timeout just means "not connected".
func (h *HealthReporter) Report(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	connected := true
	if err := h.store.Ping(ctx); err != nil {
		connected = false
		h.logger.Warn("store ping failed", slog.String("error", err.Error()))
	}
	h.metrics.SetStoreUp(connected)

	return HealthReport{
		Status:         StatusUp,
		Timestamp:      h.now().UTC(),
		StoreConnected: connected,
	}
}
