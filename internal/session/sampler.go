package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server-presence-backend/internal/metrics"
	"server-presence-backend/internal/store"
)

// Sampler derives an online-count time series from the same presence
// snapshots the tracker consumes. A sample is written only when the count
// differs from the last successfully written value; the memory is process
// local, so a restart may produce one redundant sample.
type Sampler struct {
	kind   string
	store  store.SampleStore
	logger zerolog.Logger

	last    int
	written bool
}

// NewSampler creates an online-count sampler for one entity kind.
func NewSampler(kind string, st store.SampleStore, logger zerolog.Logger) *Sampler {
	return &Sampler{
		kind:   kind,
		store:  st,
		logger: logger.With().Str("component", "sampler").Str("kind", kind).Logger(),
	}
}

// HandleSnapshot records len(present) if it changed since the last write.
func (s *Sampler) HandleSnapshot(ctx context.Context, present []string, now time.Time) {
	count := len(present)
	metrics.OnlineCount.WithLabelValues(s.kind).Set(float64(count))

	if s.written && count == s.last {
		return
	}

	if err := s.store.Insert(ctx, count, now); err != nil {
		// last stays untouched so the write is retried next cycle.
		metrics.StoreErrors.WithLabelValues(s.kind, "sample").Inc()
		s.logger.Error().Err(err).Int("online_count", count).Msg("online_sample_insert_failed")
		return
	}

	s.last = count
	s.written = true
	metrics.SamplesWritten.WithLabelValues(s.kind).Inc()
	s.logger.Info().
		Int("online_count", count).
		Time("queried_at", now).
		Msg("online_count_changed")
}
