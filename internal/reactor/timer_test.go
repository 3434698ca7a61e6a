package reactor

import (
	"testing"
	"time"
)

func TestNewTimerAssignsIncreasingSequence(t *testing.T) {
	now := time.Now()
	a := newTimer(now, 0, false, func() {})
	b := newTimer(now, 0, false, func() {})
	if b.sequence <= a.sequence {
		t.Fatalf("sequence did not increase: a=%d b=%d", a.sequence, b.sequence)
	}
}

func TestTimerRestartOneShotClearsExpiration(t *testing.T) {
	now := time.Now()
	tm := newTimer(now, 0, false, func() {})
	tm.restart(now.Add(time.Second))
	if !tm.expiration.IsZero() {
		t.Fatalf("one-shot timer restart left a non-zero expiration: %v", tm.expiration)
	}
}

func TestTimerRestartRepeatingAdvancesByInterval(t *testing.T) {
	now := time.Now()
	interval := 5 * time.Second
	tm := newTimer(now, interval, true, func() {})
	tm.restart(now)
	if got, want := tm.expiration, now.Add(interval); !got.Equal(want) {
		t.Fatalf("restart() expiration = %v, want %v", got, want)
	}
}

func TestTimerIdCarriesSequence(t *testing.T) {
	tm := newTimer(time.Now(), 0, false, func() {})
	id := TimerId{target: tm, sequence: tm.sequence}
	if id.sequence != tm.sequence {
		t.Fatalf("TimerId.sequence = %d, want %d", id.sequence, tm.sequence)
	}
}
