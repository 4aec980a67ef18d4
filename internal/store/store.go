package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"babylog-backend/internal/model"
)

// Store defines the interface for all database operations used by the
// notification engine and the API layer.
type Store interface {
	// Engine reads.
	ListEnabledPreferences(ctx context.Context) ([]model.NotificationPreference, error)
	LatestActivityTime(ctx context.Context, childID int64, kind string) (*time.Time, error)

	// Engine writes.
	MarkNotified(ctx context.Context, prefID int64, prev *time.Time, now time.Time) (bool, error)
	ClearNotified(ctx context.Context, prefID int64, claimed time.Time, prev *time.Time) error
	RecordSuccess(ctx context.Context, subscriptionID int64, now time.Time) error
	RecordFailure(ctx context.Context, subscriptionID int64, now time.Time) error
	DeleteSubscription(ctx context.Context, subscriptionID int64) error
	AppendLog(ctx context.Context, entry *model.NotificationLog) error

	// Retention sweeps.
	DeleteFailedSubscriptions(ctx context.Context, threshold int) (int64, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Registration handshake.
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	EnsureDefaultPreferences(ctx context.Context, subscriptionID, familyID int64) error
	GetSubscriptionByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ListEnabledPreferences returns every enabled preference with its child and
// subscription preloaded, ready for eligibility evaluation.
func (s *gormStore) ListEnabledPreferences(ctx context.Context) ([]model.NotificationPreference, error) {
	var prefs []model.NotificationPreference
	err := s.db.WithContext(ctx).
		Preload("Child").
		Preload("Subscription").
		Where("enabled = ?", true).
		Find(&prefs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load enabled preferences: %w", err)
	}
	return prefs, nil
}

// LatestActivityTime returns the time of the most recent activity record of
// the given kind for the child, or nil when the child has no history.
func (s *gormStore) LatestActivityTime(ctx context.Context, childID int64, kind string) (*time.Time, error) {
	var record model.ActivityRecord
	err := s.db.WithContext(ctx).
		Where("child_id = ? AND kind = ?", childID, kind).
		Order("time DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up latest %s activity for child %d: %w", kind, childID, err)
	}
	t := record.Time
	return &t, nil
}

// MarkNotified sets last_notified_at on a preference, but only when the
// column still holds the value read during evaluation. Overlapping cycle
// runs both pass eligibility with the same prior value; the conditional
// update lets the loser detect the conflict and skip its send. Returns
// whether this caller won the claim.
func (s *gormStore) MarkNotified(ctx context.Context, prefID int64, prev *time.Time, now time.Time) (bool, error) {
	q := s.db.WithContext(ctx).
		Model(&model.NotificationPreference{}).
		Where("id = ?", prefID)
	if prev == nil {
		q = q.Where("last_notified_at IS NULL")
	} else {
		q = q.Where("last_notified_at = ?", *prev)
	}

	res := q.Update("last_notified_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClearNotified rolls a claimed last_notified_at back to its prior value
// after a failed send, so the candidate is retried on the next cycle. The
// rollback is itself conditional on the claimed value still being present.
func (s *gormStore) ClearNotified(ctx context.Context, prefID int64, claimed time.Time, prev *time.Time) error {
	var prevValue any
	if prev != nil {
		prevValue = *prev
	}
	return s.db.WithContext(ctx).
		Model(&model.NotificationPreference{}).
		Where("id = ? AND last_notified_at = ?", prefID, claimed).
		Update("last_notified_at", prevValue).Error
}

// RecordSuccess resets the failure counter and stamps the last success time.
func (s *gormStore) RecordSuccess(ctx context.Context, subscriptionID int64, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.PushSubscription{}).
		Where("id = ?", subscriptionID).
		Updates(map[string]any{
			"failure_count":   0,
			"last_success_at": now,
		}).Error
}

// RecordFailure increments the failure counter and stamps the last failure
// time.
func (s *gormStore) RecordFailure(ctx context.Context, subscriptionID int64, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.PushSubscription{}).
		Where("id = ?", subscriptionID).
		Updates(map[string]any{
			"failure_count":   gorm.Expr("failure_count + 1"),
			"last_failure_at": now,
		}).Error
}

// DeleteSubscription removes a subscription row; preference rows cascade.
func (s *gormStore) DeleteSubscription(ctx context.Context, subscriptionID int64) error {
	return s.db.WithContext(ctx).
		Delete(&model.PushSubscription{}, subscriptionID).Error
}

// AppendLog writes one audit row for a delivery attempt.
func (s *gormStore) AppendLog(ctx context.Context, entry *model.NotificationLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// DeleteFailedSubscriptions removes subscriptions whose failure counter has
// reached the pruning threshold and returns the number of rows deleted.
func (s *gormStore) DeleteFailedSubscriptions(ctx context.Context, threshold int) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("failure_count >= ?", threshold).
		Delete(&model.PushSubscription{})
	return res.RowsAffected, res.Error
}

// DeleteLogsBefore removes audit rows created before the cutoff and returns
// the number of rows deleted.
func (s *gormStore) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.NotificationLog{})
	return res.RowsAffected, res.Error
}

// UpsertSubscription creates a subscription row or refreshes the key
// material and device metadata of an existing one, keyed on the endpoint.
// The subscription ID is populated on return.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "device_label", "user_agent", "updated_at"}),
	}).Create(sub).Error
	if err != nil {
		return err
	}

	// An upsert that hit the conflict path does not report the existing
	// row's ID, so resolve it by endpoint.
	if sub.ID == 0 {
		var existing model.PushSubscription
		if err := s.db.WithContext(ctx).
			Select("id").
			First(&existing, "endpoint = ?", sub.Endpoint).Error; err != nil {
			return err
		}
		sub.ID = existing.ID
	}
	return nil
}

// EnsureDefaultPreferences creates a disabled preference row for every
// (child, event type) pair of the subscription's family that does not
// already have one, so devices have rows to toggle.
func (s *gormStore) EnsureDefaultPreferences(ctx context.Context, subscriptionID, familyID int64) error {
	var children []model.Child
	if err := s.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Find(&children).Error; err != nil {
		return fmt.Errorf("failed to list children for family %d: %w", familyID, err)
	}

	var prefs []model.NotificationPreference
	for _, child := range children {
		for _, eventType := range model.EventTypes {
			prefs = append(prefs, model.NotificationPreference{
				SubscriptionID: subscriptionID,
				ChildID:        child.ID,
				EventType:      eventType,
			})
		}
	}
	if len(prefs) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscription_id"}, {Name: "child_id"}, {Name: "event_type"}},
		DoNothing: true,
	}).Create(&prefs).Error
}

// GetSubscriptionByEndpoint fetches a subscription with its preferences.
func (s *gormStore) GetSubscriptionByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).
		Preload("Preferences").
		First(&sub, "endpoint = ?", endpoint).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscriptionByEndpoint removes a subscription by endpoint. Deleting
// an absent endpoint is not an error.
func (s *gormStore) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Delete(&model.PushSubscription{}).Error
}
