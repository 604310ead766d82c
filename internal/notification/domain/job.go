package domain

import (
	"errors"
	"fmt"
	"time"
)

// Job types accepted by the fan-out queue.
const (
	JobTypePush     = "push"
	JobTypeTelegram = "telegram"
	JobTypeBatch    = "batch"
)

// Urgency levels. Urgent raises provider delivery priority.
const (
	UrgencyNormal = "normal"
	UrgencyUrgent = "urgent"
)

// Job states. Queued and delayed jobs are awaiting a worker; completed and
// failed are terminal (failed jobs may be manually re-queued).
const (
	StateQueued    = "queued"
	StateDelayed   = "delayed"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

var (
	// ErrInvalidJobPayload rejects a submission that fails shape validation.
	ErrInvalidJobPayload = errors.New("invalid job payload")
	// ErrJobNotFound is the sentinel for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidStateTransition rejects a retry of a job that is not failed.
	ErrInvalidStateTransition = errors.New("invalid job state transition")
)

// Message is the notification content fanned out to recipients.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// JobPayload is the normalized "send an alert" request carried by a queue job.
type JobPayload struct {
	Type       string   `json:"type"`
	Tokens     []string `json:"tokens,omitempty"`
	Message    Message  `json:"message"`
	CourseCode string   `json:"course_code,omitempty"`
	Urgency    string   `json:"urgency"`
	ChatID     int64    `json:"chat_id,omitempty"`
}

// Validate checks payload shape before the job enters the queue.
func (p *JobPayload) Validate() error {
	switch p.Type {
	case JobTypePush, JobTypeBatch:
		// Course-targeted jobs resolve their token set in the worker.
		if len(p.Tokens) == 0 && p.CourseCode == "" {
			return fmt.Errorf("%w: tokens are required for %s jobs", ErrInvalidJobPayload, p.Type)
		}
	case JobTypeTelegram:
		if p.ChatID == 0 {
			return fmt.Errorf("%w: chat_id is required for telegram jobs", ErrInvalidJobPayload)
		}
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidJobPayload)
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrInvalidJobPayload, p.Type)
	}

	if p.Message.Title == "" && p.Message.Body == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidJobPayload)
	}

	if p.Urgency == "" {
		p.Urgency = UrgencyNormal
	}
	if p.Urgency != UrgencyNormal && p.Urgency != UrgencyUrgent {
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidJobPayload, p.Urgency)
	}
	return nil
}

// Job is one fan-out work item tracked by the queue.
type Job struct {
	ID           string     `json:"id"`
	Payload      JobPayload `json:"payload"`
	State        string     `json:"state"`
	AttemptsMade int        `json:"attempts_made"`
	StalledCount int        `json:"stalled_count"`
	Progress     string     `json:"progress,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// QueueStats is a point-in-time snapshot of job counts per state.
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}
