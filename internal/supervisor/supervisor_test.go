package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSupervisorRestartsCrashedTask(t *testing.T) {
	var runs int32
	sup := New(time.Millisecond, zerolog.Nop())
	sup.Add("flaky", func(ctx context.Context) error {
		if atomic.AddInt32(&runs, 1) < 3 {
			return errors.New("crash")
		}
		return nil
	})

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not finish")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&runs))
}

func TestSupervisorDoesNotRestartFinishedTask(t *testing.T) {
	var runs int32
	sup := New(time.Millisecond, zerolog.Nop())
	sup.Add("oneshot", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	sup.Run(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestSupervisorStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sup := New(time.Hour, zerolog.Nop())
	sup.Add("looper", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	sup.Add("crasher", func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("interrupted")
	})

	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop after cancellation")
	}
}

func TestSupervisorRunsTasksConcurrently(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	sup := New(time.Millisecond, zerolog.Nop())
	for _, name := range []string{"a", "b"} {
		name := name
		sup.Add(name, func(ctx context.Context) error {
			started <- name
			<-release
			return nil
		})
	}

	go sup.Run(context.Background())

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case name := <-started:
			seen[name] = true
		case <-time.After(time.Second):
			t.Fatal("tasks did not start concurrently")
		}
	}
	close(release)
	assert.True(t, seen["a"] && seen["b"])
}
