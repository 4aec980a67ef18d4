package model

import "time"

// NotificationLog is an append-only audit row for one delivery attempt.
// Rows are only ever created by the delivery path and bulk-deleted by the
// retention sweep, never updated.
type NotificationLog struct {
	ID           int64  `gorm:"primaryKey"`
	EventType    string `gorm:"size:64;not null"`
	ActivityKind string `gorm:"size:32"`
	ChildID      int64  `gorm:"index"`
	Success      bool   `gorm:"not null"`
	StatusCode   *int
	ErrorText    string    `gorm:"size:512"`
	Payload      string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"index;not null"`
}
