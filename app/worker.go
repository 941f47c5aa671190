package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// worker runs a function on a ticker and whenever it is kicked.
// Start is idempotent; Stop waits for the running pass to finish.
type worker struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context)
	logger   zerolog.Logger

	kick    chan struct{}
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newWorker(name string, interval time.Duration, logger zerolog.Logger, run func(ctx context.Context)) *worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &worker{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

func (w *worker) start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info().Str("worker", w.name).Dur("interval", w.interval).Msg("starting worker")

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// Pick up work left over from a previous run.
		w.run(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.run(ctx)
			case <-w.kick:
				w.run(ctx)
			}
		}
	}(w.done)
}

func (w *worker) stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info().Str("worker", w.name).Msg("worker stopped")
}

// notify asks for a pass without blocking. Kicks coalesce.
func (w *worker) notify() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}
