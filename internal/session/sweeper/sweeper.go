// Package sweeper runs the periodic session expiry sweep in the background.
package sweeper

import (
	"context"
	"log"
	"sync"
	"time"

	"gemwallet/backend/internal/session/repository"
)

// Sweep is the expiry pass run on each tick. Satisfied by the session
// lifecycle manager.
type Sweep interface {
	SweepExpired(ctx context.Context) (repository.SweepResult, error)
}

// Sweeper periodically retires expired sessions. Passes run on a single
// goroutine, so a slow pass delays the next tick instead of overlapping it.
type Sweeper struct {
	sweep        Sweep
	interval     time.Duration
	initialDelay time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New returns a Sweeper that runs sweep every interval, after waiting
// initialDelay so startup work is not competing with the first pass.
func New(sweep Sweep, interval, initialDelay time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{sweep: sweep, interval: interval, initialDelay: initialDelay}
}

// Start launches the sweep loop. A second Start without an intervening Stop is
// a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})
	go s.run(runCtx, s.stopped)
}

// Stop cancels the loop and waits for an in-flight pass to finish. Idempotent.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel, s.stopped = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (s *Sweeper) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	if s.initialDelay > 0 {
		delay := time.NewTimer(s.initialDelay)
		select {
		case <-ctx.Done():
			delay.Stop()
			return
		case <-delay.C:
		}
	}

	s.runOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a single pass, bounded by the sweep interval so a hung
// pass cannot stall every pass after it. Errors are logged and the loop
// continues; a failed pass leaves the rows for the next one.
func (s *Sweeper) runOnce(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()
	result, err := s.sweep.SweepExpired(passCtx)
	if err != nil {
		log.Printf("sweeper: pass failed: %v", err)
		return
	}
	if result.AbsoluteExpired > 0 || result.HeartbeatGap > 0 {
		log.Printf("sweeper: retired %d absolute-expired, %d heartbeat-gap sessions",
			result.AbsoluteExpired, result.HeartbeatGap)
	}
}
