package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server-presence-backend/internal/metrics"
)

// Notifier delivers a rendered digest to the external channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Scheduler posts a digest at 23:59 local time every day. The range widens
// on calendar boundaries: year on Dec 31, month on a month's last day, week
// on Sunday, day otherwise. Generation or delivery failures are logged and
// the scheduler carries on; there is no redelivery.
type Scheduler struct {
	generator *Generator
	notifier  Notifier
	loc       *time.Location
	logger    zerolog.Logger
}

// NewScheduler creates the daily digest task.
func NewScheduler(generator *Generator, notifier Notifier, loc *time.Location, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		generator: generator,
		notifier:  notifier,
		loc:       loc,
		logger:    logger.With().Str("component", "digest_scheduler").Logger(),
	}
}

// Run sleeps until each day's delivery time, then generates and posts.
// Returns nil on context cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := time.Now().In(s.loc)
		wait := nextRun(now).Sub(now)
		s.logger.Info().Dur("wait", wait).Msg("digest_task_sleeping")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		s.deliver(ctx)
	}
}

// nextRun returns the next 23:59 in now's location.
func nextRun(now time.Time) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location())
	if !now.Before(run) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}

// rangeFor picks the widest range that closes on the given day.
func rangeFor(day time.Time) Range {
	switch {
	case day.Month() == time.December && day.Day() == 31:
		return RangeYear
	case day.AddDate(0, 0, 1).Day() == 1:
		return RangeMonth
	case day.Weekday() == time.Sunday:
		return RangeWeek
	default:
		return RangeDay
	}
}

func (s *Scheduler) deliver(ctx context.Context) {
	today := time.Now().In(s.loc)
	r := rangeFor(today)
	from, to := DateRange(r, today)

	s.logger.Info().Str("range", string(r)).Msg("digest_generation_started")
	digest, err := s.generator.Generate(ctx, r, from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("digest_generation_failed")
		return
	}

	if len(digest.PopularWorlds) == 0 {
		s.logger.Info().Str("range", string(r)).Msg("digest_skipped_no_popular_worlds")
		return
	}

	if err := s.notifier.Send(ctx, Render(digest)); err != nil {
		s.logger.Error().Err(err).Msg("digest_delivery_failed")
		return
	}
	metrics.DigestsDelivered.Inc()
	s.logger.Info().Str("range", string(r)).Msg("digest_delivered")
}
