// Package gate debounces expensive periodic actions per key. Two redundant
// checks back each other up: an in-memory short circuit protects against
// hot-loop re-entry within one process lifetime, and a persisted
// last-record check protects against duplicate writes across restarts.
package gate

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LastRecordFunc looks up the most recent persisted record for a key and
// returns its timestamp. found is false when the key has never been
// written.
type LastRecordFunc func(ctx context.Context, key string) (ts time.Time, found bool, err error)

// Gate answers "is it time to recompute this key yet?".
type Gate struct {
	lastRecord LastRecordFunc
	now        func() time.Time

	mu   sync.Mutex
	next map[string]time.Time
}

func New(lastRecord LastRecordFunc) *Gate {
	return &Gate{
		lastRecord: lastRecord,
		now:        time.Now,
		next:       make(map[string]time.Time),
	}
}

// Run invokes action at most once per ttl window for the key. A skipped
// run returns nil; action errors propagate to the caller, which decides
// whether they block anything else.
func (g *Gate) Run(
	ctx context.Context,
	key string,
	ttl time.Duration,
	action func(ctx context.Context) error,
) error {
	now := g.now()

	g.mu.Lock()
	if until, ok := g.next[key]; ok && now.Before(until) {
		g.mu.Unlock()
		return nil
	}
	g.next[key] = now.Add(ttl)
	g.mu.Unlock()

	ts, found, err := g.lastRecord(ctx, key)
	if err != nil {
		// Let the next tick retry the store read instead of waiting a
		// whole ttl for it.
		g.clear(key)
		return err
	}
	if found && now.Sub(ts) < ttl {
		// The store already holds a fresh record, likely written before a
		// restart. Clear the in-memory slot so the next tick re-checks the
		// store rather than sleeping past the actual expiry.
		log.WithField("key", key).
			Debug("skipping run, persisted record still fresh")
		g.clear(key)
		return nil
	}

	return action(ctx)
}

func (g *Gate) clear(key string) {
	g.mu.Lock()
	delete(g.next, key)
	g.mu.Unlock()
}
