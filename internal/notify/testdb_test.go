package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"babylog-backend/internal/model"
	"babylog-backend/internal/store"
)

// newSQLiteStore sets up an isolated in-memory database for one test.
func newSQLiteStore(t *testing.T) store.Store {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Child{},
		&model.ActivityRecord{},
		&model.PushSubscription{},
		&model.NotificationPreference{},
		&model.NotificationLog{},
	))

	return store.NewGormStore(db)
}

func createChild(t *testing.T, s store.Store, name, feedWarning, diaperWarning string) *model.Child {
	child := &model.Child{
		FamilyID:      1,
		Name:          name,
		FeedWarning:   feedWarning,
		DiaperWarning: diaperWarning,
	}
	require.NoError(t, s.DB().Create(child).Error)
	return child
}

func createSubscription(t *testing.T, s store.Store, endpoint string, failureCount int) *model.PushSubscription {
	sub := &model.PushSubscription{
		FamilyID:     1,
		Endpoint:     endpoint,
		P256DH:       "test_p256dh",
		Auth:         "test_auth",
		FailureCount: failureCount,
	}
	require.NoError(t, s.DB().Create(sub).Error)
	return sub
}

func createPreference(t *testing.T, s store.Store, subID, childID int64, eventType string, repeatMinutes *int) *model.NotificationPreference {
	pref := &model.NotificationPreference{
		SubscriptionID:        subID,
		ChildID:               childID,
		EventType:             eventType,
		Enabled:               true,
		RepeatIntervalMinutes: repeatMinutes,
	}
	require.NoError(t, s.DB().Create(pref).Error)
	return pref
}

func createActivity(t *testing.T, s store.Store, childID int64, kind string, at time.Time) {
	require.NoError(t, s.DB().Create(&model.ActivityRecord{
		ChildID: childID,
		Kind:    kind,
		Time:    at,
	}).Error)
}
