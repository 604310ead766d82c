package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	devicedomain "msomi-backend/internal/device/domain"
)

func newTestRepo(t *testing.T) DeviceRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&devicedomain.Device{}, &devicedomain.Subscription{}))
	return NewDeviceRepository(db)
}

func TestRegisterCreatesDeviceWithSubscriptions(t *testing.T) {
	repo := newTestRepo(t)

	device, created, err := repo.Register("tok-1", "Asha", "+254700000001", "android", []string{"CS101", "MATH201"})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, device.ID)
	require.Equal(t, devicedomain.TokenActive, device.TokenStatus)
	require.Len(t, device.Subscriptions, 2)
}

func TestRegisterUpsertsByToken(t *testing.T) {
	repo := newTestRepo(t)

	first, created, err := repo.Register("tok-1", "Asha", "", "android", []string{"CS101"})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := repo.Register("tok-1", "Asha W.", "", "android", []string{"CS101", "PHY110"})
	require.NoError(t, err)
	require.False(t, created)

	// Same device row, updated in place.
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Asha W.", second.StudentName)
	require.Len(t, second.Subscriptions, 2)

	devices, err := repo.List(10)
	require.NoError(t, err)
	require.Len(t, devices, 1)
}

func TestRegisterCreatedComesFromInsert(t *testing.T) {
	repo := newTestRepo(t)

	// created reflects the insert, not a prior lookup, so only the first
	// registration of a token can report it.
	_, created, err := repo.Register("tok-1", "Asha", "", "android", []string{"CS101"})
	require.NoError(t, err)
	require.True(t, created)

	for i := 0; i < 3; i++ {
		_, created, err = repo.Register("tok-1", "Asha", "", "android", []string{"CS101"})
		require.NoError(t, err)
		require.False(t, created)
	}

	_, created, err = repo.Register("tok-2", "Brian", "", "ios", nil)
	require.NoError(t, err)
	require.True(t, created)
}

func TestRegisterReactivatesInvalidatedToken(t *testing.T) {
	repo := newTestRepo(t)

	_, _, err := repo.Register("tok-1", "Asha", "", "android", []string{"CS101"})
	require.NoError(t, err)
	require.NoError(t, repo.MarkInvalid("tok-1"))

	device, created, err := repo.Register("tok-1", "Asha", "", "android", nil)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, devicedomain.TokenActive, device.TokenStatus)
	// nil course list keeps existing subscriptions
	require.Len(t, device.Subscriptions, 1)
}

func TestFindByID(t *testing.T) {
	repo := newTestRepo(t)

	device, _, err := repo.Register("tok-1", "Asha", "", "android", []string{"CS101"})
	require.NoError(t, err)

	found, err := repo.FindByID(device.ID)
	require.NoError(t, err)
	require.Equal(t, device.ID, found.ID)
	require.Len(t, found.Subscriptions, 1)

	missing, err := repo.FindByID("nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestFindTokensByCourseExcludesInvalid(t *testing.T) {
	repo := newTestRepo(t)

	_, _, err := repo.Register("tok-1", "Asha", "", "android", []string{"CS101"})
	require.NoError(t, err)
	_, _, err = repo.Register("tok-2", "Brian", "", "ios", []string{"CS101"})
	require.NoError(t, err)
	_, _, err = repo.Register("tok-3", "Carol", "", "android", []string{"MATH201"})
	require.NoError(t, err)

	require.NoError(t, repo.MarkInvalid("tok-2"))

	tokens, err := repo.FindTokensByCourse("CS101")
	require.NoError(t, err)
	require.Equal(t, []string{"tok-1"}, tokens)

	tokens, err = repo.FindTokensByCourse("NOPE999")
	require.NoError(t, err)
	require.Empty(t, tokens)
}

func TestMarkInvalidIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)

	_, _, err := repo.Register("tok-1", "Asha", "", "android", []string{"CS101"})
	require.NoError(t, err)

	require.NoError(t, repo.MarkInvalid("tok-1"))
	require.NoError(t, repo.MarkInvalid("tok-1"))
	require.NoError(t, repo.MarkInvalid("unknown-token"))

	device, err := repo.FindByToken("tok-1")
	require.NoError(t, err)
	require.Equal(t, devicedomain.TokenInvalid, device.TokenStatus)
}

func TestRotateTokenKeepsDeviceAndSubscriptions(t *testing.T) {
	repo := newTestRepo(t)

	original, _, err := repo.Register("tok-old", "Asha", "", "android", []string{"CS101"})
	require.NoError(t, err)

	require.NoError(t, repo.RotateToken("tok-old", "tok-new"))

	gone, err := repo.FindByToken("tok-old")
	require.NoError(t, err)
	require.Nil(t, gone)

	rotated, err := repo.FindByToken("tok-new")
	require.NoError(t, err)
	require.Equal(t, original.ID, rotated.ID)
	require.Len(t, rotated.Subscriptions, 1)

	require.ErrorIs(t, repo.RotateToken("tok-missing", "tok-x"), gorm.ErrRecordNotFound)
}

func TestMarkStaleInactive(t *testing.T) {
	repo := newTestRepo(t)

	_, _, err := repo.Register("tok-fresh", "Asha", "", "android", []string{"CS101"})
	require.NoError(t, err)
	stale, _, err := repo.Register("tok-stale", "Brian", "", "ios", []string{"CS101"})
	require.NoError(t, err)

	// Age the second device past the cutoff.
	impl := repo.(*deviceRepository)
	old := time.Now().Add(-100 * 24 * time.Hour)
	require.NoError(t, impl.db.Model(&devicedomain.Device{}).
		Where("id = ?", stale.ID).
		Update("last_seen", old).Error)

	count, err := repo.MarkStaleInactive(time.Now().Add(-90 * 24 * time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	tokens, err := repo.FindTokensByCourse("CS101")
	require.NoError(t, err)
	require.Equal(t, []string{"tok-fresh"}, tokens)

	// Second sweep finds nothing new.
	count, err = repo.MarkStaleInactive(time.Now().Add(-90 * 24 * time.Hour))
	require.NoError(t, err)
	require.Zero(t, count)
}
