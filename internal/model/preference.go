package model

import "time"

// Notification event type constants.
const (
	EventFeedTimerExpired   = "feed_timer_expired"
	EventDiaperTimerExpired = "diaper_timer_expired"
)

// EventTypes lists every event type a device can opt into.
var EventTypes = []string{EventFeedTimerExpired, EventDiaperTimerExpired}

// ActivityKindForEvent maps an event type to the activity kind whose latest
// record drives the timer. Unknown event types map to "".
func ActivityKindForEvent(eventType string) string {
	switch eventType {
	case EventFeedTimerExpired:
		return ActivityFeed
	case EventDiaperTimerExpired:
		return ActivityDiaper
	}
	return ""
}

// NotificationPreference is one device's opt-in to one event type for one
// child. LastNotifiedAt and the repeat interval drive the once-per-episode
// versus fixed-cadence reminder policy.
type NotificationPreference struct {
	ID             int64  `gorm:"primaryKey"`
	SubscriptionID int64  `gorm:"uniqueIndex:idx_pref_sub_child_event;not null"`
	ChildID        int64  `gorm:"uniqueIndex:idx_pref_sub_child_event;not null"`
	EventType      string `gorm:"uniqueIndex:idx_pref_sub_child_event;size:64;not null"`
	Enabled        bool   `gorm:"not null;default:false"`

	// RepeatIntervalMinutes nil means notify once per expiration episode.
	RepeatIntervalMinutes *int
	LastNotifiedAt        *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Subscription PushSubscription `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
	Child        Child            `gorm:"foreignKey:ChildID;constraint:OnDelete:CASCADE"`
}
