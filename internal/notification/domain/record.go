package domain

import "time"

// DeliveryRecord is the immutable summary of one completed fan-out, written
// once per job and never mutated afterwards.
type DeliveryRecord struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	JobID          string    `json:"job_id" gorm:"index"`
	CourseCode     string    `json:"course_code" gorm:"index"`
	Title          string    `json:"title"`
	RecipientCount int       `json:"recipient_count"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	Urgency        string    `json:"urgency"`
	SentAt         time.Time `json:"sent_at" gorm:"index"`
}

// RecordFilter narrows ledger queries.
type RecordFilter struct {
	CourseCode string
	Since      time.Time
	Limit      int
}
