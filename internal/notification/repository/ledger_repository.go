package repository

import (
	"time"

	notifdomain "msomi-backend/internal/notification/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRepository is the append-only audit of fan-out outcomes.
type LedgerRepository interface {
	Record(record *notifdomain.DeliveryRecord) error
	Query(filter notifdomain.RecordFilter) ([]notifdomain.DeliveryRecord, error)
}

// ledgerRepository implements LedgerRepository on GORM
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new instance of ledgerRepository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{
		db: db,
	}
}

// Record appends one delivery summary. Records are never updated or deleted.
func (r *ledgerRepository) Record(record *notifdomain.DeliveryRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.SentAt.IsZero() {
		record.SentAt = time.Now()
	}
	return r.db.Create(record).Error
}

// Query returns matching records ordered newest-first.
func (r *ledgerRepository) Query(filter notifdomain.RecordFilter) ([]notifdomain.DeliveryRecord, error) {
	query := r.db.Model(&notifdomain.DeliveryRecord{})
	if filter.CourseCode != "" {
		query = query.Where("course_code = ?", filter.CourseCode)
	}
	if !filter.Since.IsZero() {
		query = query.Where("sent_at >= ?", filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var records []notifdomain.DeliveryRecord
	err := query.Order("sent_at DESC").Limit(limit).Find(&records).Error
	return records, err
}
