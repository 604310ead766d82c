package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	notifdomain "msomi-backend/internal/notification/domain"
)

func newTestLedger(t *testing.T) LedgerRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&notifdomain.DeliveryRecord{}))
	return NewLedgerRepository(db)
}

func TestRecordFillsDefaults(t *testing.T) {
	ledger := newTestLedger(t)

	record := &notifdomain.DeliveryRecord{
		JobID:          "job-1",
		CourseCode:     "CS101",
		Title:          "Exam moved",
		RecipientCount: 10,
		SuccessCount:   8,
		FailureCount:   2,
	}
	require.NoError(t, ledger.Record(record))
	require.NotEmpty(t, record.ID)
	require.False(t, record.SentAt.IsZero())
}

func TestQueryFiltersByCourseAndTime(t *testing.T) {
	ledger := newTestLedger(t)
	now := time.Now()

	seed := []struct {
		course string
		sentAt time.Time
	}{
		{"CS101", now.Add(-3 * time.Hour)},
		{"CS101", now.Add(-1 * time.Hour)},
		{"MATH201", now.Add(-2 * time.Hour)},
	}
	for i, s := range seed {
		require.NoError(t, ledger.Record(&notifdomain.DeliveryRecord{
			JobID:      fmt.Sprintf("job-%d", i),
			CourseCode: s.course,
			Title:      "t",
			SentAt:     s.sentAt,
		}))
	}

	records, err := ledger.Query(notifdomain.RecordFilter{CourseCode: "CS101"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first.
	require.Equal(t, "job-1", records[0].JobID)
	require.Equal(t, "job-0", records[1].JobID)

	records, err = ledger.Query(notifdomain.RecordFilter{Since: now.Add(-90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "job-1", records[0].JobID)
}

func TestQueryAppliesLimit(t *testing.T) {
	ledger := newTestLedger(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.Record(&notifdomain.DeliveryRecord{
			JobID:  fmt.Sprintf("job-%d", i),
			Title:  "t",
			SentAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := ledger.Query(notifdomain.RecordFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "job-4", records[0].JobID)
}
