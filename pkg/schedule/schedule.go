// Package schedule runs periodic background tasks for the storefront:
// refreshing the menu and sweeping idle carts.
//
//	s := schedule.New()
//	s.Every(5 * time.Minute).Name("menu-refresh").WithoutOverlapping().Run(refresh)
//	go s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Task is the function signature for a scheduled task. ctx ends when the
// scheduler stops.
type Task func(ctx context.Context)

type entry struct {
	id        string
	interval  time.Duration
	task      Task
	immediate bool
	noOverlap bool

	mu      sync.Mutex
	lastRun time.Time
	running bool
}

// Scheduler dispatches registered entries from a single ticker.
type Scheduler struct {
	tick time.Duration

	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
}

// Schedule is a fluent builder for one entry before it is registered.
type Schedule struct {
	s *Scheduler
	e *entry
}

func New() *Scheduler { return &Scheduler{tick: time.Second} }

// Every starts an entry that runs once per d.
func (s *Scheduler) Every(d time.Duration) *Schedule {
	return &Schedule{s: s, e: &entry{interval: d}}
}

// WithoutOverlapping skips a run while the previous one is still executing.
func (b *Schedule) WithoutOverlapping() *Schedule {
	b.e.noOverlap = true
	return b
}

// Immediately runs the task on the first tick instead of one interval after
// Start.
func (b *Schedule) Immediately() *Schedule {
	b.e.immediate = true
	return b
}

// Name gives the entry an identifier for logging.
func (b *Schedule) Name(id string) *Schedule {
	b.e.id = id
	return b
}

// Run registers the task. Entries with a non-positive interval are ignored.
func (b *Schedule) Run(fn Task) {
	if b.e.interval <= 0 {
		return
	}
	b.e.task = fn
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
}

// Start dispatches due tasks until ctx ends, then waits for running tasks to
// return.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	started := time.Now()
	s.mu.Lock()
	for _, e := range s.entries {
		if !e.immediate {
			e.lastRun = started
		}
	}
	s.mu.Unlock()

	logger.Info("schedule: started", "tasks", len(s.List()))
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			logger.Info("schedule: stopped")
			return
		case now := <-ticker.C:
			s.mu.Lock()
			current := append([]*entry(nil), s.entries...)
			s.mu.Unlock()

			for _, e := range current {
				s.dispatch(ctx, e, now)
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.interval {
		e.mu.Unlock()
		return
	}
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Debug("schedule: skipping overlapping run", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
		}()
		logger.Debug("schedule: running task", "id", e.id)
		e.task(ctx)
	}()
}

// List describes the registered entries, sorted by id.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [every %s]", e.id, e.interval))
	}
	sort.Strings(out)
	return out
}
