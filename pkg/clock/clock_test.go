package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueTimers(t *testing.T) {
	t.Parallel()

	fake := NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	var fired []string
	fake.AfterFunc(2*time.Minute, func() { fired = append(fired, "b") })
	fake.AfterFunc(1*time.Minute, func() { fired = append(fired, "a") })
	fake.AfterFunc(10*time.Minute, func() { fired = append(fired, "c") })

	fake.Advance(5 * time.Minute)

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("expected [a b], got %v", fired)
	}
	if fake.Pending() != 1 {
		t.Fatalf("expected one pending timer, got %d", fake.Pending())
	}

	fake.Advance(5 * time.Minute)
	if len(fired) != 3 || fired[2] != "c" {
		t.Fatalf("expected c to fire, got %v", fired)
	}
}

func TestFakeStopPreventsFiring(t *testing.T) {
	t.Parallel()

	fake := NewFake(time.Unix(0, 0))

	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatalf("expected Stop to report pending")
	}
	if timer.Stop() {
		t.Fatalf("second Stop should report already stopped")
	}

	fake.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer must not fire")
	}
}

func TestFakeNowAdvances(t *testing.T) {
	t.Parallel()

	start := time.Unix(1000, 0)
	fake := NewFake(start)
	fake.Advance(90 * time.Second)

	if got := fake.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("unexpected now: %v", got)
	}
}
