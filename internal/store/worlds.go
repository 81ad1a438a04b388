package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"server-presence-backend/internal/model"
)

// WorldStatusStore accumulates change-detected per-world observations.
type WorldStatusStore interface {
	// Record appends a batch of observations. Rows are keyed by
	// (name, saved_at); re-recording the same key is an overwrite.
	Record(ctx context.Context, statuses []model.WorldStatus) error
	// Latest returns the newest observation per world since the cutoff.
	Latest(ctx context.Context, since time.Time) ([]model.WorldStatus, error)
	// Between returns all observations inside [from, to) ordered by world
	// and time; input for the digest's popularity calculation.
	Between(ctx context.Context, from, to time.Time) ([]model.WorldStatus, error)
}

type gormWorldStatusStore struct {
	db *gorm.DB
}

// NewWorldStatusStore creates a GORM-backed world status store.
func NewWorldStatusStore(db *gorm.DB) WorldStatusStore {
	return &gormWorldStatusStore{db: db}
}

func (s *gormWorldStatusStore) Record(ctx context.Context, statuses []model.WorldStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "saved_at"}},
		DoUpdates: clause.AssignmentColumns([]string{"players", "static", "ssmp"}),
	}).Create(&statuses).Error; err != nil {
		return fmt.Errorf("batch record world statuses failed: %w", err)
	}
	return nil
}

func (s *gormWorldStatusStore) Latest(ctx context.Context, since time.Time) ([]model.WorldStatus, error) {
	var rows []model.WorldStatus
	if err := s.db.WithContext(ctx).
		Where("saved_at > ?", since).
		Order("name, saved_at").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query world statuses: %w", err)
	}

	latest := make(map[string]model.WorldStatus, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, seen := latest[row.Name]; !seen {
			order = append(order, row.Name)
		}
		latest[row.Name] = row
	}

	out := make([]model.WorldStatus, 0, len(order))
	for _, name := range order {
		out = append(out, latest[name])
	}
	return out, nil
}

func (s *gormWorldStatusStore) Between(ctx context.Context, from, to time.Time) ([]model.WorldStatus, error) {
	var rows []model.WorldStatus
	if err := s.db.WithContext(ctx).
		Where("saved_at >= ? AND saved_at < ?", from, to).
		Order("name, saved_at").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query world statuses: %w", err)
	}
	return rows, nil
}
