package model

import "time"

// OnlineSample is one point of the online-count time series. Samples are
// written only when the count differs from the previously written value, so
// the series is run-length encoded rather than one row per poll.
type OnlineSample struct {
	ID        int64     `gorm:"autoIncrement;primaryKey" json:"-"`
	Count     int       `gorm:"column:online_count;not null" json:"count"`
	QueriedAt time.Time `gorm:"not null;index" json:"queriedAt"`
}
