package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is a long-running unit of work. It returns nil for a clean stop
// (normally on context cancellation) and an error when it crashed.
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	run  Task
}

// Supervisor runs independent long-lived tasks and keeps them alive: a task
// that returns an error is logged and restarted after a backoff delay, so
// one crashing collector never silently takes its siblings down. A task
// returning nil is treated as finished and not restarted.
type Supervisor struct {
	tasks   []namedTask
	backoff time.Duration
	logger  zerolog.Logger
}

// New creates a supervisor restarting failed tasks after backoff.
func New(backoff time.Duration, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		backoff: backoff,
		logger:  logger.With().Str("component", "supervisor").Logger(),
	}
}

// Add registers a named task. Must be called before Run.
func (s *Supervisor) Add(name string, task Task) {
	s.tasks = append(s.tasks, namedTask{name: name, run: task})
}

// Run starts every task and blocks until the context is cancelled and all
// tasks have returned.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t namedTask) {
			defer wg.Done()
			s.supervise(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, t namedTask) {
	for {
		err := t.run(ctx)
		if err == nil {
			s.logger.Info().Str("task", t.name).Msg("task_finished")
			return
		}
		if ctx.Err() != nil {
			s.logger.Info().Str("task", t.name).Msg("task_stopped")
			return
		}

		s.logger.Error().
			Err(err).
			Str("task", t.name).
			Dur("restart_in", s.backoff).
			Msg("task_crashed_restarting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}
	}
}
