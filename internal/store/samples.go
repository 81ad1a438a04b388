package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"server-presence-backend/internal/model"
)

// SampleStore persists the change-deduplicated online-count time series for
// one entity kind.
type SampleStore interface {
	Insert(ctx context.Context, count int, at time.Time) error
	// Peak returns the highest count observed inside [from, to), or 0 when
	// the range holds no samples.
	Peak(ctx context.Context, from, to time.Time) (int, error)
	// Recent returns the newest samples, most recent first.
	Recent(ctx context.Context, limit int) ([]model.OnlineSample, error)
}

type gormSampleStore struct {
	db    *gorm.DB
	table string
}

// NewSampleStore creates a GORM-backed sample store over the given table.
func NewSampleStore(db *gorm.DB, table string) SampleStore {
	return &gormSampleStore{db: db, table: table}
}

func (s *gormSampleStore) Insert(ctx context.Context, count int, at time.Time) error {
	row := model.OnlineSample{Count: count, QueriedAt: at}
	if err := s.db.WithContext(ctx).Table(s.table).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert online sample: %w", err)
	}
	return nil
}

func (s *gormSampleStore) Peak(ctx context.Context, from, to time.Time) (int, error) {
	var peak *int
	if err := s.db.WithContext(ctx).Table(s.table).
		Select("MAX(online_count)").
		Where("queried_at >= ? AND queried_at < ?", from, to).
		Scan(&peak).Error; err != nil {
		return 0, fmt.Errorf("failed to query peak online: %w", err)
	}
	if peak == nil {
		return 0, nil
	}
	return *peak, nil
}

func (s *gormSampleStore) Recent(ctx context.Context, limit int) ([]model.OnlineSample, error) {
	var rows []model.OnlineSample
	if err := s.db.WithContext(ctx).Table(s.table).
		Order("queried_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query recent samples: %w", err)
	}
	return rows, nil
}
