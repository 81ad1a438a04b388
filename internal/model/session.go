package model

import "time"

// Session is one contiguous presence interval for a single entity (player or
// world). The row is keyed by (entity_id, start_time): StartTime never
// changes after insert, EndTime is advanced on every poll cycle while the
// entity is present or inside its suspension grace period.
type Session struct {
	EntityID  string    `gorm:"primaryKey;size:256;column:entity_id" json:"entityId"`
	StartTime time.Time `gorm:"primaryKey;not null" json:"startTime"`
	EndTime   time.Time `gorm:"not null;index" json:"endTime"`
}
