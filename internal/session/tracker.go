package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server-presence-backend/internal/metrics"
	"server-presence-backend/internal/store"
)

// Entity kinds tracked by the service. Both kinds run the same engine; the
// kind only selects thresholds, tables, and log/metric labels.
const (
	KindPlayers = "players"
	KindWorlds  = "worlds"
)

type suspension struct {
	start       time.Time
	suspendedAt time.Time
}

// Tracker converts a polled stream of presence snapshots into persisted
// session intervals. It owns two in-memory maps: active entities (currently
// observed, interval open) and suspended entities (not observed, but within
// the grace period; the interval stays open and may resume). An entity is
// never in both maps at once.
//
// The tracker is driven by a single poll loop and is not safe for concurrent
// use.
type Tracker struct {
	kind      string
	threshold time.Duration
	store     store.SessionStore
	logger    zerolog.Logger
	onStart   func(entityID string)

	active    map[string]time.Time
	suspended map[string]suspension
}

// NewTracker creates a session tracker for one entity kind. threshold is the
// maximum absence duration before a suspended session is considered ended.
func NewTracker(kind string, threshold time.Duration, st store.SessionStore, logger zerolog.Logger) *Tracker {
	return &Tracker{
		kind:      kind,
		threshold: threshold,
		store:     st,
		logger:    logger.With().Str("component", "session").Str("kind", kind).Logger(),
		active:    make(map[string]time.Time),
		suspended: make(map[string]suspension),
	}
}

// OnSessionStart registers a hook fired for every genuinely new session
// (not for resumptions and not for recovered intervals).
func (t *Tracker) OnSessionStart(fn func(entityID string)) {
	t.onStart = fn
}

// Recover reconciles the currently-present set against recently-open
// intervals in storage. For every present entity with an interval whose
// end_time is within the threshold, the interval is re-adopted with its
// stored start time; the first snapshot then touches it instead of inserting
// a duplicate row. Entities without a recoverable interval stay absent and
// become fresh sessions. A query failure means a cold start, never a crash.
func (t *Tracker) Recover(ctx context.Context, present []string, now time.Time) {
	open, err := t.store.OpenSince(ctx, present, now.Add(-t.threshold))
	if err != nil {
		t.logger.Warn().Err(err).Msg("session_recovery_failed_starting_cold")
		return
	}
	for entityID, start := range open {
		t.active[entityID] = start
	}
	t.logger.Info().Int("recovered", len(open)).Int("present", len(present)).Msg("session_state_recovered")
}

// HandleSnapshot applies one complete, deduplicated presence snapshot taken
// at now. Membership is decided against the live active/suspended key set,
// not against the previous raw snapshot, so a skipped poll contributes no
// transitions.
func (t *Tracker) HandleSnapshot(ctx context.Context, present []string, now time.Time) {
	current := make(map[string]struct{}, len(present))
	for _, entityID := range present {
		current[entityID] = struct{}{}
	}

	// Active entities that disappeared enter the grace period.
	for entityID, start := range t.active {
		if _, ok := current[entityID]; ok {
			continue
		}
		delete(t.active, entityID)
		t.suspended[entityID] = suspension{start: start, suspendedAt: now}
		t.logger.Debug().
			Str("entity", entityID).
			Time("session_start", start).
			Msg("session_suspended")
	}

	// Present entities either resume a suspended session (original start
	// time preserved, no new row) or open a brand new interval.
	for entityID := range current {
		if _, ok := t.active[entityID]; ok {
			continue
		}
		if susp, ok := t.suspended[entityID]; ok {
			delete(t.suspended, entityID)
			t.active[entityID] = susp.start
			metrics.SessionsResumed.WithLabelValues(t.kind).Inc()
			t.logger.Debug().
				Str("entity", entityID).
				Time("session_start", susp.start).
				Msg("session_renewed")
			continue
		}

		t.active[entityID] = now
		metrics.SessionsStarted.WithLabelValues(t.kind).Inc()
		t.logger.Debug().
			Str("entity", entityID).
			Time("session_start", now).
			Msg("session_started")
		if err := t.store.Insert(ctx, entityID, now, now); err != nil {
			// A failed insert loses this session start: subsequent touches
			// update zero rows until the entity disconnects and returns.
			metrics.StoreErrors.WithLabelValues(t.kind, "insert").Inc()
			t.logger.Error().Err(err).Str("entity", entityID).Msg("session_insert_failed")
		}
		if t.onStart != nil {
			t.onStart(entityID)
		}
	}

	// Suspensions past the threshold end permanently; the last persisted
	// end_time stands as the interval's final value.
	for entityID, susp := range t.suspended {
		if now.Sub(susp.suspendedAt) > t.threshold {
			delete(t.suspended, entityID)
			metrics.SessionsClosed.WithLabelValues(t.kind).Inc()
			t.logger.Debug().
				Str("entity", entityID).
				Time("session_start", susp.start).
				Time("suspended_at", susp.suspendedAt).
				Msg("session_closed")
		}
	}

	// One batched write per poll: everything still tracked, active or
	// within its grace period, gets end_time = now.
	open := make(map[string]time.Time, len(t.active)+len(t.suspended))
	for entityID, start := range t.active {
		open[entityID] = start
	}
	for entityID, susp := range t.suspended {
		open[entityID] = susp.start
	}
	if err := t.store.TouchAll(ctx, open, now); err != nil {
		// Not retried here: the next cycle rewrites end_time unconditionally.
		metrics.StoreErrors.WithLabelValues(t.kind, "touch").Inc()
		t.logger.Error().Err(err).Int("open", len(open)).Msg("session_touch_failed")
	}
}

// TrackedCounts reports the current sizes of the active and suspended sets.
func (t *Tracker) TrackedCounts() (active, suspended int) {
	return len(t.active), len(t.suspended)
}
