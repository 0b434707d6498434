package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-hq/meridian/internal/jobs"
)

// TaskTokenSweep deletes refresh-token audit rows whose tokens have expired.
// Expiry is already enforced cryptographically at verification time; the
// sweep only keeps the audit table from growing without bound.
const TaskTokenSweep = "auth:token_sweep"

// NewTokenSweepTask creates an Asynq task for the periodic sweep.
func NewTokenSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTokenSweep, nil, asynq.Queue(QueueDefault))
}

// TokenStore is the slice of persistence the sweep needs.
type TokenStore interface {
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

// TokenSweepJob removes expired refresh-token records.
type TokenSweepJob struct {
	Store   TokenStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewTokenSweepJob constructs the job handler.
func NewTokenSweepJob(store TokenStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *TokenSweepJob {
	return &TokenSweepJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *TokenSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("token sweep: store not configured")
	}
	tracker := j.Metrics.Track("token_sweep")
	deleted, err := j.Store.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("token sweep", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	if j.Logger != nil && deleted > 0 {
		j.Logger.Info("token sweep complete", slog.Int64("deleted", deleted))
	}
	return tracker.End(nil)
}
