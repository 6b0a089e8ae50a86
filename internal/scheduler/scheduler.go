// Package scheduler runs the engines' deferred completion work: kitchen prep
// finishing, delivery completion, reservation expiry. Tasks are keyed so they
// can be canceled or replaced before they fire, and they run detached from the
// request that scheduled them.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/metrics"
)

// Func is the body of a scheduled task. It must be idempotent: a retried or
// duplicated firing must not re-apply its state mutation.
type Func func(ctx context.Context) error

type Scheduler struct {
	mu      sync.Mutex
	clk     clock.Clock
	logg    *logger.Logger
	metrics *metrics.TaskMetrics
	pending map[string]*task
}

type task struct {
	name  string
	key   string
	timer clock.Timer
}

func New(clk clock.Clock, logg *logger.Logger, taskMetrics *metrics.TaskMetrics) *Scheduler {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Scheduler{
		clk:     clk,
		logg:    logg,
		metrics: taskMetrics,
		pending: make(map[string]*task),
	}
}

// taskID namespaces keys by task name so engines sharing one scheduler cannot
// clobber each other's tasks for the same aggregate id.
func taskID(name, key string) string {
	return name + ":" + key
}

// Schedule registers fn to run once after delay. Scheduling again under the
// same name and key replaces the earlier task without firing it.
func (s *Scheduler) Schedule(name, key string, delay time.Duration, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := taskID(name, key)
	if prior, ok := s.pending[id]; ok {
		prior.timer.Stop()
		s.metrics.IncCanceled(prior.name)
		delete(s.pending, id)
	}

	entry := &task{name: name, key: key}
	entry.timer = s.clk.AfterFunc(delay, func() {
		s.fire(entry, fn)
	})
	s.pending[id] = entry
}

// Cancel stops the pending task under name and key. It reports whether a task
// was still pending; a canceled task never fires.
func (s *Scheduler) Cancel(name, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := taskID(name, key)
	entry, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	if entry.timer.Stop() {
		s.metrics.IncCanceled(entry.name)
		return true
	}
	return false
}

// Pending returns the number of tasks still waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) fire(entry *task, fn Func) {
	id := taskID(entry.name, entry.key)
	s.mu.Lock()
	current, ok := s.pending[id]
	if !ok || current != entry {
		// canceled or replaced between timer fire and lock acquisition
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	ctx := context.Background()
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "task", entry.name)
	}

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveDuration(entry.name, time.Since(start))

	if err != nil {
		s.metrics.IncFailure(entry.name)
		if s.logg != nil {
			s.logg.Error(ctx, "scheduled task failed", err)
		}
		return
	}
	s.metrics.IncSuccess(entry.name)
}
