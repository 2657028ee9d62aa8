package algorithms

import (
	"math/rand"
	"testing"
	"time"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	b := NewBackoffStrategy(BackoffExponential, 10*time.Millisecond, 100*time.Millisecond, 0, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 0},
		{0, 10 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{2, 40 * time.Millisecond},
		{3, 80 * time.Millisecond},
		{4, 100 * time.Millisecond},
		{200, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := b.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestJitteredBackoff_StaysWithinBand(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := NewBackoffStrategy(BackoffJittered, 100*time.Millisecond, time.Second, 0.2, rng)

	for i := 0; i < 100; i++ {
		d := b.NextDelay(1)
		if d < 160*time.Millisecond || d > 240*time.Millisecond {
			t.Fatalf("delay %v outside ±20%% of 200ms", d)
		}
	}
}

func TestDecorrelatedBackoff_BoundsAndReset(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := NewBackoffStrategy(BackoffDecorrelated, 50*time.Millisecond, 400*time.Millisecond, 0, rng)

	if got := b.NextDelay(0); got != 50*time.Millisecond {
		t.Fatalf("first delay = %v, want initial", got)
	}
	for i := 1; i < 20; i++ {
		d := b.NextDelay(i)
		if d < 50*time.Millisecond || d > 400*time.Millisecond {
			t.Fatalf("attempt %d: delay %v out of [50ms, 400ms]", i, d)
		}
	}

	b.Reset()
	if d := b.NextDelay(1); d > 150*time.Millisecond {
		t.Errorf("after reset delay %v exceeds 3x initial", d)
	}
}

func TestNewBackoffStrategy_MaxBelowInitial(t *testing.T) {
	b := NewBackoffStrategy(BackoffExponential, time.Second, time.Millisecond, 0, nil)
	if got := b.NextDelay(3); got != time.Second {
		t.Errorf("NextDelay = %v, want max raised to initial (1s)", got)
	}
}

func TestParseBackoff(t *testing.T) {
	for _, bt := range []BackoffType{BackoffExponential, BackoffJittered, BackoffDecorrelated} {
		got, err := ParseBackoff(bt.String())
		if err != nil {
			t.Fatalf("ParseBackoff(%q): %v", bt.String(), err)
		}
		if got != bt {
			t.Errorf("ParseBackoff(%q) = %v, want %v", bt.String(), got, bt)
		}
	}

	if _, err := ParseBackoff("linear"); err == nil {
		t.Error("ParseBackoff(linear) should fail")
	}
	if got := BackoffType(42).String(); got != "unknown" {
		t.Errorf("String() = %q, want unknown", got)
	}
}
