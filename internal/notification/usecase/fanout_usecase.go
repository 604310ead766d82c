package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	devicerepo "msomi-backend/internal/device/repository"
	notifdomain "msomi-backend/internal/notification/domain"
	"msomi-backend/internal/notification/dispatch"
	"msomi-backend/internal/notification/queue"
	notifrepo "msomi-backend/internal/notification/repository"
	"msomi-backend/pkg/fcm"
)

// ErrNoRecipients signals a course alert that resolved to zero active tokens
// at submission time.
var ErrNoRecipients = errors.New("no registered devices for course")

// TelegramSender is the narrow contract to the Telegram channel.
type TelegramSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// FanoutUsecase is the notification core: it accepts fan-out submissions,
// executes queued jobs and exposes the status/stats/history surface.
type FanoutUsecase interface {
	Submit(ctx context.Context, payload notifdomain.JobPayload) (*notifdomain.Job, error)
	SubmitCourseAlert(ctx context.Context, courseCode, title, body, urgency string) (*notifdomain.Job, int, error)
	JobStatus(ctx context.Context, id string) (*notifdomain.Job, error)
	RetryJob(ctx context.Context, id string) error
	QueueStats(ctx context.Context) (notifdomain.QueueStats, error)
	ClearQueue(ctx context.Context) error
	History(filter notifdomain.RecordFilter) ([]notifdomain.DeliveryRecord, error)
	HandleJob(ctx context.Context, job *notifdomain.Job) error
}

// fanoutUsecase implements FanoutUsecase
type fanoutUsecase struct {
	jobs       *queue.Queue
	devices    devicerepo.DeviceRepository
	dispatcher *dispatch.Dispatcher
	ledger     notifrepo.LedgerRepository
	telegram   TelegramSender
}

// NewFanoutUsecase creates a new instance of fanoutUsecase
func NewFanoutUsecase(
	jobs *queue.Queue,
	devices devicerepo.DeviceRepository,
	dispatcher *dispatch.Dispatcher,
	ledger notifrepo.LedgerRepository,
	telegram TelegramSender,
) FanoutUsecase {
	return &fanoutUsecase{
		jobs:       jobs,
		devices:    devices,
		dispatcher: dispatcher,
		ledger:     ledger,
		telegram:   telegram,
	}
}

// Submit validates and enqueues a raw fan-out payload. The caller gets a job
// id immediately; delivery outcomes are observable only via status/history.
func (u *fanoutUsecase) Submit(ctx context.Context, payload notifdomain.JobPayload) (*notifdomain.Job, error) {
	return u.jobs.Enqueue(ctx, payload)
}

// SubmitCourseAlert resolves the course's active tokens and enqueues a push
// job for them. Returns the recipient count alongside the job handle, or
// ErrNoRecipients when nothing is subscribed.
func (u *fanoutUsecase) SubmitCourseAlert(ctx context.Context, courseCode, title, body, urgency string) (*notifdomain.Job, int, error) {
	tokens, err := u.devices.FindTokensByCourse(courseCode)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve course tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrNoRecipients, courseCode)
	}

	payload := notifdomain.JobPayload{
		Type:       notifdomain.JobTypePush,
		CourseCode: courseCode,
		Urgency:    urgency,
		Message: notifdomain.Message{
			Title: title,
			Body:  body,
		},
	}
	job, err := u.jobs.Enqueue(ctx, payload)
	if err != nil {
		return nil, 0, err
	}
	return job, len(tokens), nil
}

func (u *fanoutUsecase) JobStatus(ctx context.Context, id string) (*notifdomain.Job, error) {
	return u.jobs.Job(ctx, id)
}

func (u *fanoutUsecase) RetryJob(ctx context.Context, id string) error {
	return u.jobs.Retry(ctx, id)
}

func (u *fanoutUsecase) QueueStats(ctx context.Context) (notifdomain.QueueStats, error) {
	return u.jobs.Stats(ctx)
}

func (u *fanoutUsecase) ClearQueue(ctx context.Context) error {
	return u.jobs.Clear(ctx)
}

func (u *fanoutUsecase) History(filter notifdomain.RecordFilter) ([]notifdomain.DeliveryRecord, error) {
	return u.ledger.Query(filter)
}

// HandleJob executes one job attempt. Errors returned here feed the queue's
// retry policy; everything below the dispatch boundary (chunk failures,
// invalidation, ledger writes) is absorbed and logged instead.
func (u *fanoutUsecase) HandleJob(ctx context.Context, job *notifdomain.Job) error {
	switch job.Payload.Type {
	case notifdomain.JobTypePush, notifdomain.JobTypeBatch:
		return u.handlePush(ctx, job)
	case notifdomain.JobTypeTelegram:
		return u.handleTelegram(ctx, job)
	default:
		// Unknown types are rejected at enqueue; reaching here is a bug.
		return fmt.Errorf("unknown job type %q", job.Payload.Type)
	}
}

func (u *fanoutUsecase) handlePush(ctx context.Context, job *notifdomain.Job) error {
	if u.dispatcher == nil {
		return errors.New("push delivery not configured")
	}

	tokens := job.Payload.Tokens

	// Course-targeted jobs resolve their token set at processing time, so a
	// token invalidated since submission is excluded. A directory error is
	// retryable through the queue's backoff policy.
	if job.Payload.CourseCode != "" && len(tokens) == 0 {
		resolved, err := u.devices.FindTokensByCourse(job.Payload.CourseCode)
		if err != nil {
			return fmt.Errorf("failed to resolve course tokens: %w", err)
		}
		tokens = resolved
	}

	u.setProgress(ctx, job.ID, fmt.Sprintf("dispatching to %d recipients", len(tokens)))

	notification := fcm.NotificationData{
		Title:  job.Payload.Message.Title,
		Body:   job.Payload.Message.Body,
		Data:   u.buildDataPayload(job),
		Urgent: job.Payload.Urgency == notifdomain.UrgencyUrgent,
	}

	outcome := u.dispatcher.Fanout(ctx, tokens, notification)

	log.Printf("[Fanout] Job %s: %d/%d delivered (%d failed)",
		job.ID, outcome.Success, outcome.Recipients, outcome.Failure)

	u.recordOutcome(job, outcome)
	u.setProgress(ctx, job.ID, "completed")
	return nil
}

func (u *fanoutUsecase) handleTelegram(ctx context.Context, job *notifdomain.Job) error {
	if u.telegram == nil {
		return errors.New("telegram channel not configured")
	}

	text := job.Payload.Message.Title
	if job.Payload.Message.Body != "" {
		text += "\n" + job.Payload.Message.Body
	}
	if err := u.telegram.Send(ctx, job.Payload.ChatID, text); err != nil {
		return err
	}

	u.recordOutcome(job, dispatch.Outcome{Recipients: 1, Success: 1})
	return nil
}

// buildDataPayload merges the submitted data map with the standard alert
// metadata the mobile client expects.
func (u *fanoutUsecase) buildDataPayload(job *notifdomain.Job) map[string]string {
	data := map[string]string{
		"urgency":   job.Payload.Urgency,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if job.Payload.CourseCode != "" {
		data["courseCode"] = job.Payload.CourseCode
	}
	for k, v := range job.Payload.Message.Data {
		data[k] = v
	}
	return data
}

// recordOutcome appends one ledger record for the attempt that completed the
// job. Ledger failures are logged, never propagated: the fan-out already
// happened.
func (u *fanoutUsecase) recordOutcome(job *notifdomain.Job, outcome dispatch.Outcome) {
	record := &notifdomain.DeliveryRecord{
		JobID:          job.ID,
		CourseCode:     job.Payload.CourseCode,
		Title:          job.Payload.Message.Title,
		RecipientCount: outcome.Recipients,
		SuccessCount:   outcome.Success,
		FailureCount:   outcome.Failure,
		Urgency:        job.Payload.Urgency,
		SentAt:         time.Now(),
	}
	if err := u.ledger.Record(record); err != nil {
		log.Printf("[Fanout] Failed to write delivery record for job %s: %v", job.ID, err)
	}
}

func (u *fanoutUsecase) setProgress(ctx context.Context, jobID, progress string) {
	if err := u.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
		log.Printf("[Fanout] Failed to update progress for job %s: %v", jobID, err)
	}
}
