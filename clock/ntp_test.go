package clock

import (
	"testing"
	"time"
)

func TestSystemClock(t *testing.T) {
	c := System()
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Fatalf("System().Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestNTPClock_ZeroOffset(t *testing.T) {
	c := NewNTP()

	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before.Add(-time.Millisecond)) || got.After(after.Add(time.Millisecond)) {
		t.Fatalf("NTPClock.Now() with zero offset = %v, want ~time.Now()", got)
	}
	if !c.LastSync().IsZero() {
		t.Fatalf("LastSync() = %v before any sync, want zero", c.LastSync())
	}
}

func TestNTPClock_ManualOffset(t *testing.T) {
	c := NewNTP()

	c.mu.Lock()
	c.offset = 5 * time.Second
	c.mu.Unlock()

	before := time.Now().Add(5 * time.Second)
	got := c.Now()
	after := time.Now().Add(5 * time.Second)

	if got.Before(before.Add(-time.Millisecond)) || got.After(after.Add(time.Millisecond)) {
		t.Fatalf("NTPClock.Now() with +5s offset = %v, want ~%v", got, before)
	}

	if off := c.Offset(); off != 5*time.Second {
		t.Fatalf("Offset() = %v, want 5s", off)
	}
}

func TestNTPClock_Options(t *testing.T) {
	c := NewNTP(
		WithServer("time.example.com"),
		WithInterval(time.Minute),
		WithTimeout(2*time.Second),
	)
	if c.server != "time.example.com" {
		t.Errorf("server = %q, want time.example.com", c.server)
	}
	if c.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", c.interval)
	}
	if c.timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", c.timeout)
	}

	// Zero values keep the defaults.
	d := NewNTP(WithServer(""), WithInterval(0), WithTimeout(0))
	if d.server != defaultServer || d.interval != defaultInterval || d.timeout != defaultTimeout {
		t.Errorf("zero-valued options overrode defaults: %q %v %v", d.server, d.interval, d.timeout)
	}
}

func TestNTPClock_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping NTP integration test in -short mode")
	}

	c := NewNTP(WithTimeout(10 * time.Second))

	c.sync()

	off := c.Offset()
	// A healthy system clock should be within 1 second of NTP.
	if off > time.Second || off < -time.Second {
		t.Logf("WARNING: system clock offset from NTP is %v", off)
	}

	got := c.Now()
	wall := time.Now()
	diff := got.Sub(wall)
	if diff < 0 {
		diff = -diff
	}
	// With any reasonable offset the difference should be small.
	if diff > 2*time.Second {
		t.Fatalf("NTPClock.Now() differs from time.Now() by %v after sync", diff)
	}
}
