package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"server-presence-backend/internal/model"
)

// SessionStore persists presence intervals for one entity kind. Rows are
// keyed by (entity_id, start_time); the same schema backs both kinds with
// the table name selecting the kind.
type SessionStore interface {
	// Insert opens a new interval with start_time == end_time.
	Insert(ctx context.Context, entityID string, start, end time.Time) error
	// TouchAll advances end_time to now for every (entity, start) pair in
	// one transaction. Re-applying the same now is a pure overwrite.
	TouchAll(ctx context.Context, open map[string]time.Time, now time.Time) error
	// OpenSince returns, per entity, the start time of its most recent
	// interval whose end_time is later than notBefore. Used by startup
	// recovery to re-adopt intervals that survived a process restart.
	OpenSince(ctx context.Context, entityIDs []string, notBefore time.Time) (map[string]time.Time, error)
	// Sessions returns all intervals that started inside [from, to).
	Sessions(ctx context.Context, from, to time.Time) ([]model.Session, error)
	// MostActive aggregates total interval hours per entity over [from, to).
	MostActive(ctx context.Context, from, to time.Time, limit int) ([]EntityActivity, error)
}

// EntityActivity is one row of the most-active aggregation.
type EntityActivity struct {
	EntityID string  `json:"entityId"`
	Hours    float64 `json:"hours"`
}

type gormSessionStore struct {
	db    *gorm.DB
	table string
}

// NewSessionStore creates a GORM-backed session store over the given table.
func NewSessionStore(db *gorm.DB, table string) SessionStore {
	return &gormSessionStore{db: db, table: table}
}

func (s *gormSessionStore) Insert(ctx context.Context, entityID string, start, end time.Time) error {
	row := model.Session{EntityID: entityID, StartTime: start, EndTime: end}
	if err := s.db.WithContext(ctx).Table(s.table).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session for %q: %w", entityID, err)
	}
	return nil
}

func (s *gormSessionStore) TouchAll(ctx context.Context, open map[string]time.Time, now time.Time) error {
	if len(open) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for entityID, start := range open {
			if err := tx.Table(s.table).
				Where("entity_id = ? AND start_time = ?", entityID, start).
				Update("end_time", now).Error; err != nil {
				return fmt.Errorf("failed to touch session for %q: %w", entityID, err)
			}
		}
		return nil
	})
}

func (s *gormSessionStore) OpenSince(ctx context.Context, entityIDs []string, notBefore time.Time) (map[string]time.Time, error) {
	open := make(map[string]time.Time)
	if len(entityIDs) == 0 {
		return open, nil
	}

	var rows []model.Session
	if err := s.db.WithContext(ctx).Table(s.table).
		Where("entity_id IN ? AND end_time > ?", entityIDs, notBefore).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query open sessions: %w", err)
	}

	// Latest qualifying interval wins per entity.
	for _, row := range rows {
		if prev, ok := open[row.EntityID]; !ok || row.StartTime.After(prev) {
			open[row.EntityID] = row.StartTime
		}
	}
	return open, nil
}

func (s *gormSessionStore) Sessions(ctx context.Context, from, to time.Time) ([]model.Session, error) {
	var rows []model.Session
	if err := s.db.WithContext(ctx).Table(s.table).
		Where("start_time >= ? AND start_time < ?", from, to).
		Order("entity_id, start_time").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	return rows, nil
}

func (s *gormSessionStore) MostActive(ctx context.Context, from, to time.Time, limit int) ([]EntityActivity, error) {
	rows, err := s.Sessions(ctx, from, to)
	if err != nil {
		return nil, err
	}

	// Aggregated Go-side so the store stays portable across both dialects.
	totals := make(map[string]float64)
	for _, row := range rows {
		totals[row.EntityID] += row.EndTime.Sub(row.StartTime).Hours()
	}

	activity := make([]EntityActivity, 0, len(totals))
	for entityID, hours := range totals {
		activity = append(activity, EntityActivity{EntityID: entityID, Hours: hours})
	}
	sort.Slice(activity, func(i, j int) bool {
		if activity[i].Hours != activity[j].Hours {
			return activity[i].Hours > activity[j].Hours
		}
		return activity[i].EntityID < activity[j].EntityID
	})

	if limit > 0 && len(activity) > limit {
		activity = activity[:limit]
	}
	return activity, nil
}
