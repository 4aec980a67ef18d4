package model

import "time"

// Child represents a child tracked by the surrounding activity logger.
// The notification engine only reads this table; thresholds are configured
// by caretakers through the main application.
type Child struct {
	ID       int64  `gorm:"primaryKey"`
	FamilyID int64  `gorm:"index;not null"`
	Name     string `gorm:"size:128;not null"`

	// Inactivity thresholds stored as "HH:MM" strings.
	FeedWarning   string `gorm:"size:8"`
	DiaperWarning string `gorm:"size:8"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
