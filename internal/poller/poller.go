package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server-presence-backend/internal/metrics"
)

// Source yields the current set of present entity identifiers. A query may
// fail or hang; the poller bounds every call with a timeout.
type Source interface {
	Query(ctx context.Context) ([]string, error)
}

// Handler consumes one presence snapshot. The tracker and the sampler both
// implement this and receive the same snapshot and timestamp per cycle.
type Handler interface {
	HandleSnapshot(ctx context.Context, present []string, now time.Time)
}

// Recoverer is run once, with the first usable snapshot, before any handler
// sees it.
type Recoverer interface {
	Recover(ctx context.Context, present []string, now time.Time)
}

// Poller drives the fixed-interval polling cadence for one entity kind.
// Cycles never overlap: a cycle completes, including storage writes, before
// the next delay starts. A failed or timed-out query skips the cycle and
// leaves all handler state untouched; a skipped poll carries no information.
type Poller struct {
	kind       string
	source     Source
	recoverers []Recoverer
	handlers   []Handler
	delay      time.Duration
	timeout    time.Duration
	logger     zerolog.Logger
	recovered  bool
}

// New creates a poller for one entity kind.
func New(kind string, source Source, delay, timeout time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		kind:    kind,
		source:  source,
		delay:   delay,
		timeout: timeout,
		logger:  logger.With().Str("component", "poller").Str("kind", kind).Logger(),
	}
}

// Recover registers recoverers run once before the first handled snapshot.
func (p *Poller) Recover(recoverers ...Recoverer) *Poller {
	p.recoverers = append(p.recoverers, recoverers...)
	return p
}

// Handle registers snapshot handlers, invoked in order each cycle.
func (p *Poller) Handle(handlers ...Handler) *Poller {
	p.handlers = append(p.handlers, handlers...)
	return p
}

// Run polls until the context is cancelled. It always returns nil on
// cancellation; source errors never terminate the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().Dur("delay", p.delay).Msg("collection_started")

	p.cycle(ctx)

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("collection_stopped")
			return nil
		case <-timer.C:
			p.cycle(ctx)
			timer.Reset(p.delay)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, p.timeout)
	present, err := p.source.Query(queryCtx)
	cancel()
	if err != nil {
		metrics.SourceErrors.WithLabelValues(p.kind).Inc()
		p.logger.Warn().Err(err).Msg("presence_query_failed_cycle_skipped")
		return
	}

	now := time.Now().UTC()
	metrics.PollCycles.WithLabelValues(p.kind).Inc()

	if !p.recovered {
		for _, r := range p.recoverers {
			r.Recover(ctx, present, now)
		}
		p.recovered = true
	}

	for _, h := range p.handlers {
		h.HandleSnapshot(ctx, present, now)
	}
}
