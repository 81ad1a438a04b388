package model

import "time"

// WorldStatus is a change-detected observation of a single world: its player
// count and flags at SavedAt. Rows accumulate over time and feed the
// popularity calculation in the digest.
type WorldStatus struct {
	Name    string    `gorm:"primaryKey;size:256" json:"name"`
	SavedAt time.Time `gorm:"primaryKey;not null" json:"savedAt"`
	Players int       `gorm:"not null" json:"players"`
	Static  bool      `gorm:"not null" json:"static"`
	SSMP    bool      `gorm:"column:ssmp;not null" json:"ssmp"`
}
