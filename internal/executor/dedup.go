package executor

import (
	"sync"
	"time"
)

// Dedup remembers symbols that had an order accepted recently so later passes
// do not submit again before the broker's positions reflect the fill. It is
// safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // symbol -> submission time
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

// NewDedup creates a Dedup that treats a symbol as recent for ttl after Mark.
// A non-positive ttl disables the guard.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Mark records a submission for symbol.
func (d *Dedup) Mark(symbol string) {
	if d.ttl <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[symbol] = d.now()
}

// Recent returns true if symbol was marked within the TTL window.
func (d *Dedup) Recent(symbol string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ts, ok := d.seen[symbol]
	return ok && d.now().Sub(ts) < d.ttl
}

// Cleanup removes entries that have expired beyond the TTL.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for sym, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, sym)
		}
	}
}
