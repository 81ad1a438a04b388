// Package roster takes periodic full snapshots of the player roster. Unlike
// the presence pollers, which run every minute, the roster scrape walks the
// whole paginated account list and runs on a weekly cadence.
package roster

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server-presence-backend/internal/model"
	"server-presence-backend/internal/store"
)

// Client yields the complete current roster.
type Client interface {
	FetchAll(ctx context.Context) ([]model.Player, error)
}

const collectRetryDelay = time.Hour

// Collector schedules roster snapshots against the last stored one, so a
// restart does not reset the cadence.
type Collector struct {
	client     Client
	store      store.RosterStore
	interval   time.Duration
	retryDelay time.Duration
	lastRun    time.Time
	logger     zerolog.Logger
}

// NewCollector creates the periodic roster collection task.
func NewCollector(client Client, st store.RosterStore, interval time.Duration, logger zerolog.Logger) *Collector {
	return &Collector{
		client:     client,
		store:      st,
		interval:   interval,
		retryDelay: collectRetryDelay,
		logger:     logger.With().Str("component", "roster_collector").Logger(),
	}
}

// Run sleeps until the last snapshot is an interval old, collects, and
// repeats. A failed collection is retried after a shorter delay. Returns nil
// on context cancellation.
func (c *Collector) Run(ctx context.Context) error {
	for {
		if wait := c.nextWait(ctx); wait > 0 {
			c.logger.Info().Dur("wait", wait).Msg("roster_collection_sleeping")
			if err := sleep(ctx, wait); err != nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := c.collect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Dur("retry_in", c.retryDelay).Msg("roster_collection_failed")
			if err := sleep(ctx, c.retryDelay); err != nil {
				return nil
			}
		}
	}
}

// nextWait derives the time until the next snapshot is due. A read failure
// or an empty table both mean "collect now". lastRun keeps an empty roster
// from re-collecting in a tight loop.
func (c *Collector) nextWait(ctx context.Context) time.Duration {
	last, err := c.store.LastSnapshotTime(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("roster_last_snapshot_unknown")
		last = time.Time{}
	}
	if c.lastRun.After(last) {
		last = c.lastRun
	}
	if last.IsZero() {
		return 0
	}
	return time.Until(last.Add(c.interval))
}

func (c *Collector) collect(ctx context.Context) error {
	c.logger.Info().Msg("roster_collection_started")
	snapshotTime := time.Now().UTC()

	players, err := c.client.FetchAll(ctx)
	if err != nil {
		return err
	}
	if err := c.store.InsertSnapshot(ctx, players, snapshotTime); err != nil {
		return err
	}

	c.lastRun = snapshotTime
	c.logger.Info().Int("inserted", len(players)).Msg("roster_collection_completed")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
