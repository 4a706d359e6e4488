package clock

import (
	"testing"
	"time"
)

func TestFixedClock(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	c := NewFixed(ts)

	if !c.Now().Equal(ts) {
		t.Errorf("expected %v, got %v", ts, c.Now())
	}
	if !c.Now().Equal(c.Now()) {
		t.Error("expected fixed clock to be stable across calls")
	}
}

func TestFuncClock(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	c := NewFunc(func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Hour)
	})

	first := c.Now()
	second := c.Now()
	if second.Sub(first) != time.Hour {
		t.Errorf("expected one hour between calls, got %v", second.Sub(first))
	}
}

func TestOrReal(t *testing.T) {
	if _, ok := OrReal(nil).(RealClock); !ok {
		t.Error("expected RealClock for nil input")
	}

	fixed := NewFixed(time.Unix(0, 0))
	if OrReal(fixed) != fixed {
		t.Error("expected the supplied clock to be returned")
	}
}
