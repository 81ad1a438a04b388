package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"server-presence-backend/internal/model"
)

const rosterInsertBatch = 500

// RosterStore persists full roster snapshots.
type RosterStore interface {
	// InsertSnapshot stamps every row with snapshotTime and writes them.
	InsertSnapshot(ctx context.Context, players []model.Player, snapshotTime time.Time) error
	// LastSnapshotTime returns when the roster was last collected, or the
	// zero time when it never was.
	LastSnapshotTime(ctx context.Context) (time.Time, error)
}

type gormRosterStore struct {
	db *gorm.DB
}

// NewRosterStore creates a GORM-backed roster store.
func NewRosterStore(db *gorm.DB) RosterStore {
	return &gormRosterStore{db: db}
}

func (s *gormRosterStore) InsertSnapshot(ctx context.Context, players []model.Player, snapshotTime time.Time) error {
	if len(players) == 0 {
		return nil
	}
	for i := range players {
		players[i].SnapshotTime = snapshotTime
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&players, rosterInsertBatch).Error; err != nil {
		return fmt.Errorf("failed to insert roster snapshot: %w", err)
	}
	return nil
}

func (s *gormRosterStore) LastSnapshotTime(ctx context.Context) (time.Time, error) {
	var last *time.Time
	if err := s.db.WithContext(ctx).Model(&model.Player{}).
		Select("MAX(snapshot_time)").
		Scan(&last).Error; err != nil {
		return time.Time{}, fmt.Errorf("failed to query last roster snapshot: %w", err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}
