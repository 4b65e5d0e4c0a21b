package audit

import (
	"context"
	"time"

	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/metrics"
)

// Recorder writes activity log entries without ever failing the caller.
type Recorder struct {
	store Store
}

// NewRecorder creates a fail-open recorder.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Store exposes the underlying store for read paths in handlers.
func (r *Recorder) Store() Store { return r.store }

// Record persists an entry. Storage failures are logged and counted but
// never returned; a broken audit sink must not take mutations down with it.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = idgen.WithPrefix("act_")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	if err := r.store.Create(ctx, &e); err != nil {
		metrics.AuditRecordsTotal.WithLabelValues("dropped").Inc()
		logging.L(ctx).Error("audit record failed",
			"org_id", e.OrgID, "action", string(e.Action),
			"resource_type", e.ResourceType, "error", err)
		return
	}
	metrics.AuditRecordsTotal.WithLabelValues("written").Inc()
}
