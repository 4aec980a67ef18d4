package model

import "time"

// Activity kinds written by the main application.
const (
	ActivityFeed   = "feed"
	ActivityDiaper = "diaper"
)

// ActivityRecord is an activity row logged by a caretaker. The engine only
// reads the latest Time per (child, kind) to compute elapsed inactivity;
// it never writes this table.
type ActivityRecord struct {
	ID      int64     `gorm:"primaryKey"`
	ChildID int64     `gorm:"index;not null"`
	Kind    string    `gorm:"size:32;index;not null"`
	Subtype string    `gorm:"size:32"`
	Time    time.Time `gorm:"index;not null"`
}
