// Package job drives the recurring snapshot cycle. It only runs in the
// supervisor process; workers answer rpc and never schedule anything.
package job

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Runner is one TTL-gated per-symbol action (a history service).
type Runner interface {
	Execute(ctx context.Context, symbol string) error
}

type Scheduler struct {
	interval time.Duration
	symbols  []string
	runners  []Runner
	busy     int32
}

func NewScheduler(interval time.Duration, symbols []string, runners ...Runner) *Scheduler {
	return &Scheduler{
		interval: interval,
		symbols:  symbols,
		runners:  runners,
	}
}

// Run ticks until the context is cancelled. A pass still in flight when
// the next tick fires is not stacked; the tick is skipped.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.WithField("symbols", len(s.symbols)).
		WithField("interval", s.interval).
		Info("snapshot scheduler started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&s.busy, 0, 1) {
				log.Debug("previous scheduler pass still running, skipping tick")
				continue
			}
			s.pass(ctx)
			atomic.StoreInt32(&s.busy, 0)
		}
	}
}

// pass visits every symbol with every runner. One symbol's failure never
// blocks the rest of the pass.
func (s *Scheduler) pass(ctx context.Context) {
	for _, symbol := range s.symbols {
		for _, r := range s.runners {
			if ctx.Err() != nil {
				return
			}
			if err := r.Execute(ctx, symbol); err != nil {
				log.WithField("symbol", symbol).
					Errorf("scheduled job failed: %v", err)
			}
		}
	}
}
