package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-hq/meridian/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeSecurityAlert notifies a tenant member about an auth event on
	// their account.
	TaskTypeSecurityAlert = "auth:security_alert"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP/Mailpit in phase 2.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// SecurityAlertPayload identifies the account and the event that triggered
// the alert. Only the event kind and addressing data travel on the queue;
// tokens never do.
type SecurityAlertPayload struct {
	TenantID   string    `json:"tenant_id"`
	Email      string    `json:"email"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewSecurityAlertTask constructs an Asynq task for a security alert.
func NewSecurityAlertTask(payload SecurityAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSecurityAlert, data, asynq.Queue(QueueDefault)), nil
}

// Mailer delivers a composed email.
type Mailer interface {
	Send(ctx context.Context, payload SendEmailPayload) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, payload SendEmailPayload) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, payload SendEmailPayload) error {
	return f(ctx, payload)
}

// SecurityAlertJob turns queued security events into member-facing emails.
type SecurityAlertJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSecurityAlertJob constructs the job handler.
func NewSecurityAlertJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SecurityAlertJob {
	return &SecurityAlertJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeSecurityAlert tasks.
func (j *SecurityAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("security_alert")
	var payload SecurityAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if payload.Email == "" || payload.Event == "" {
		_ = tracker.End(errors.New("incomplete security alert payload"))
		return asynq.SkipRetry
	}

	mail := SendEmailPayload{
		To:      payload.Email,
		Subject: alertSubject(payload.Event),
		Body:    alertBody(payload),
	}
	if err := j.Mailer.Send(ctx, mail); err != nil {
		if j.Logger != nil {
			j.Logger.Error("send security alert", slog.String("event", payload.Event), slog.Any("error", err))
		}
		return tracker.End(err)
	}

	j.Metrics.AddAlert(payload.Event)
	if j.Logger != nil {
		j.Logger.Info("security alert delivered",
			slog.String("tenant_id", payload.TenantID),
			slog.String("event", payload.Event))
	}
	return tracker.End(nil)
}

func alertSubject(event string) string {
	switch event {
	case "token_exchange":
		return "New sign-in to your Meridian account"
	default:
		return "Security notice for your Meridian account"
	}
}

func alertBody(payload SecurityAlertPayload) string {
	when := payload.OccurredAt
	if when.IsZero() {
		when = time.Now().UTC()
	}
	return fmt.Sprintf(
		"We recorded a %s event on your account at %s.\n\nIf this was you, no action is needed. Otherwise, sign out of all sessions from your account settings.\n",
		payload.Event, when.Format(time.RFC1123))
}
