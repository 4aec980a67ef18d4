package model

import "time"

// PushSubscription holds the information for a registered device's web push
// subscription, plus the delivery health counters mutated after every send.
type PushSubscription struct {
	ID          int64  `gorm:"primaryKey"`
	FamilyID    int64  `gorm:"index;not null"`
	Endpoint    string `gorm:"uniqueIndex;size:512;not null"`
	P256DH      string `gorm:"column:p256dh;not null"`
	Auth        string `gorm:"not null"`
	DeviceLabel string `gorm:"size:128"`
	UserAgent   string `gorm:"size:256"`

	// FailureCount is reset to zero on every successful delivery and
	// incremented on every non-gone failure. Subscriptions at or above the
	// pruning threshold are removed by the retention sweep.
	FailureCount  int `gorm:"not null;default:0"`
	LastSuccessAt *time.Time
	LastFailureAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Preferences []NotificationPreference `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
}
