package usage

import (
	"context"
	"log/slog"
	"time"
)

// Timer runs the metering pass on a fixed interval.
type Timer struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

func NewTimer(service *Service, interval time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start blocks until Stop is called or ctx is cancelled. One pass runs
// immediately so fresh deployments do not wait a full interval.
func (t *Timer) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.run(ctx)
	for {
		select {
		case <-ticker.C:
			t.run(ctx)
		case <-t.stop:
			t.logger.Info("usage metering timer stopped")
			return
		case <-ctx.Done():
			t.logger.Info("usage metering timer stopped", "reason", ctx.Err())
			return
		}
	}
}

func (t *Timer) Stop() {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
}

func (t *Timer) run(ctx context.Context) {
	started := time.Now()
	if err := t.service.RecomputeAll(ctx); err != nil {
		t.logger.Error("usage metering pass failed", "error", err)
		return
	}
	t.logger.Debug("usage metering pass complete", "took", time.Since(started))
}
