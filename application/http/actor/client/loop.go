package client

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Loop runs many exchanges at once, each on its own goroutine.
// Failure of one exchange never affects others.
type Loop struct {
	logger *slog.Logger

	group   errgroup.Group
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu        sync.Mutex
	exchanges []*Exchange

	doneMu sync.Mutex
	onDone func(ex *Exchange)
}

func NewLoop(opts LoopOptions, logger *slog.Logger) *Loop {
	l := &Loop{logger: logger}

	if opts.MaxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	if opts.StartRate > 0 {
		burst := opts.StartBurst
		if burst <= 0 {
			burst = max(1, int(math.Ceil(float64(opts.StartRate))))
		}
		l.limiter = rate.NewLimiter(opts.StartRate, burst)
	}

	return l
}

// OnDone sets a callback invoked as each exchange terminates.
// Calls are serialized. It must be set before the first [Loop.Go].
func (l *Loop) OnDone(f func(ex *Exchange)) { l.onDone = f }

// Go starts running ex. It does not block.
func (l *Loop) Go(ctx context.Context, ex *Exchange) {
	l.mu.Lock()
	l.exchanges = append(l.exchanges, ex)
	l.mu.Unlock()

	l.group.Go(func() error {
		release, err := l.acquire(ctx)
		if err != nil {
			// Run sees the same cancellation and fails right away.
			l.logger.Debug("exchange not admitted", slog.String("exchange", ex.ID().String()), slog.Any("error", err))
		}
		defer release()

		if _, err := ex.Run(ctx); err != nil {
			l.logger.Debug("exchange ended with error", slog.String("exchange", ex.ID().String()), slog.Any("error", err))
		}

		if l.onDone != nil {
			l.doneMu.Lock()
			l.onDone(ex)
			l.doneMu.Unlock()
		}

		// Errors are kept on each exchange; the group must not stop others.
		return nil
	})
}

func (l *Loop) acquire(ctx context.Context) (release func(), err error) {
	release = func() {}

	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return release, err
		}
		release = func() { l.sem.Release(1) }
	}

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return release, err
		}
	}

	return release, nil
}

// Wait blocks until every started exchange is terminal,
// and returns them in the order they were started.
func (l *Loop) Wait() []*Exchange {
	_ = l.group.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]*Exchange(nil), l.exchanges...)
}
