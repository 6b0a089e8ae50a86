package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts wall-clock time so engines that schedule future work can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to a pending callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the callback was still
	// pending; a false return means it already fired or was stopped.
	Stop() bool
}

// Real delegates to the time package.
type Real struct{}

func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool {
	return r.t.Stop()
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers []*fakeTimer
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	timer := &fakeTimer{
		clock: f,
		id:    f.nextID,
		due:   f.now.Add(d),
		fn:    fn,
	}
	if d <= 0 {
		// fire on the next Advance, not inline, to keep callers lock-free
		timer.due = f.now
	}
	f.timers = append(f.timers, timer)
	return timer
}

// Advance moves the clock forward, firing due callbacks in due order.
// Callbacks run synchronously on the calling goroutine.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		timer := f.popNextDue(target)
		if timer == nil {
			break
		}
		f.mu.Lock()
		if timer.due.After(f.now) {
			f.now = timer.due
		}
		f.mu.Unlock()
		timer.fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

func (f *Fake) popNextDue(target time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].due.Equal(f.timers[j].due) {
			return f.timers[i].id < f.timers[j].id
		}
		return f.timers[i].due.Before(f.timers[j].due)
	})

	for i, timer := range f.timers {
		if timer.stopped {
			continue
		}
		if timer.due.After(target) {
			return nil
		}
		timer.stopped = true
		f.timers = append(f.timers[:i], f.timers[i+1:]...)
		return timer
	}
	return nil
}

// Pending returns the number of timers still waiting to fire.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, timer := range f.timers {
		if !timer.stopped {
			count++
		}
	}
	return count
}

type fakeTimer struct {
	clock   *Fake
	id      int
	due     time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}
