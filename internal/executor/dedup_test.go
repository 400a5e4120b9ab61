package executor

import (
	"testing"
	"time"
)

func TestDedupWindow(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	d := NewDedup(30 * time.Minute)
	d.now = func() time.Time { return now }

	if d.Recent("AAA") {
		t.Fatalf("unmarked symbol reported recent")
	}
	d.Mark("AAA")
	now = now.Add(29 * time.Minute)
	if !d.Recent("AAA") {
		t.Fatalf("symbol should be recent inside the window")
	}
	now = now.Add(time.Minute)
	if d.Recent("AAA") {
		t.Fatalf("symbol should expire at the ttl")
	}
	d.Cleanup()
	if len(d.seen) != 0 {
		t.Fatalf("cleanup left %d entries", len(d.seen))
	}
}

func TestDedupDisabled(t *testing.T) {
	d := NewDedup(0)
	d.Mark("AAA")
	if d.Recent("AAA") {
		t.Fatalf("disabled guard reported recent")
	}
}
