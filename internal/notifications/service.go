package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-hq/meridian/jobs"
)

// Enqueuer submits notification tasks to the background queue. The jobs
// client satisfies it.
type Enqueuer interface {
	EnqueueSecurityAlert(ctx context.Context, payload jobs.SecurityAlertPayload) (*asynq.TaskInfo, error)
}

// Service fans auth events out to tenant members via the job queue. Delivery
// is asynchronous; enqueue failures surface to the caller, who decides
// whether the triggering operation still succeeds.
type Service struct {
	logger   *slog.Logger
	enqueuer Enqueuer
	now      func() time.Time
}

// NewService constructs a notifications Service.
func NewService(logger *slog.Logger, enqueuer Enqueuer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, enqueuer: enqueuer, now: func() time.Time { return time.Now().UTC() }}
}

// SecurityAlert queues an alert email about an auth event on the account.
func (s *Service) SecurityAlert(ctx context.Context, tenantID, email, event string) error {
	info, err := s.enqueuer.EnqueueSecurityAlert(ctx, jobs.SecurityAlertPayload{
		TenantID:   tenantID,
		Email:      email,
		Event:      event,
		OccurredAt: s.now(),
	})
	if err != nil {
		return err
	}
	s.logger.Debug("security alert enqueued",
		slog.String("tenant_id", tenantID),
		slog.String("event", event),
		slog.String("task_id", info.ID))
	return nil
}
