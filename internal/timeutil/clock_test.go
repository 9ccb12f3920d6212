package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	c := RealClock{}
	start := time.Now().Add(-time.Second)
	if d := c.Since(start); d < time.Second {
		t.Errorf("Since() = %v, want >= 1s", d)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Errorf("Now() = %v, want %v", got, base)
	}

	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(base.Add(90 * time.Second)) {
		t.Errorf("after Advance, Now() = %v", got)
	}

	if d := c.Since(base); d != 90*time.Second {
		t.Errorf("Since(base) = %v, want 90s", d)
	}

	later := base.Add(time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("after Set, Now() = %v, want %v", got, later)
	}
}
