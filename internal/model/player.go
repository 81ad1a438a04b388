package model

import "time"

// Player is one roster snapshot row: the account metadata the roster API
// reports for a player. Every collection run writes the full roster under a
// shared SnapshotTime, so account history can be compared across runs.
type Player struct {
	ID           int64      `gorm:"autoIncrement;primaryKey" json:"-"`
	Name         string     `gorm:"size:256;not null;index" json:"name"`
	RegDate      *time.Time `json:"regDate"`
	LastLogin    *time.Time `json:"lastLogin"`
	Warns        int        `gorm:"not null" json:"warns"`
	LastWarnAt   *time.Time `json:"lastWarnAt"`
	SnapshotTime time.Time  `gorm:"not null;index" json:"snapshotTime"`
}
