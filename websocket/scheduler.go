// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package websocket

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/log"
)

// Scheduler runs websocket actors on a shared goroutine pool. Each actor is a
// single logical thread: at most one of its tasks runs at any time, in FIFO
// order, while many actors share the pool.
type Scheduler struct {
	pool *ants.Pool
}

var (
	defaultScheduler *Scheduler
	defaultOnce      sync.Once
)

// NewScheduler creates a scheduler with its own pool.
func NewScheduler(opts *SchedulerOptions) (*Scheduler, error) {
	if opts == nil {
		opts = NewSchedulerOptions()
	}
	if errs := opts.Validate(); len(errs) != 0 {
		return nil, errors.NewAggregate(errs)
	}

	pool, err := ants.NewPool(opts.PoolSize,
		ants.WithExpiryDuration(opts.ExpiryDuration),
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			log.Errorf("Websocket actor panic: %v", p)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create actor pool")
	}

	return &Scheduler{pool: pool}, nil
}

// DefaultScheduler returns the process-wide scheduler, creating it on first use.
func DefaultScheduler() *Scheduler {
	defaultOnce.Do(func() {
		s, err := NewScheduler(NewSchedulerOptions())
		if err != nil {
			log.Fatalf("Failed to create default websocket scheduler: %v", err)
		}
		defaultScheduler = s
	})

	return defaultScheduler
}

// Running returns the number of pool goroutines currently running actors.
func (s *Scheduler) Running() int {
	return s.pool.Running()
}

// Release closes the pool. Actors scheduled afterwards fall back to plain
// goroutines.
func (s *Scheduler) Release() {
	s.pool.Release()
}

func (s *Scheduler) submit(task func()) {
	if err := s.pool.Submit(task); err != nil {
		// pool overloaded or closed
		go task()
	}
}

type actor struct {
	scheduler *Scheduler

	mu      sync.Mutex
	queue   []func()
	running bool
}

func newActor(scheduler *Scheduler) *actor {
	return &actor{scheduler: scheduler}
}

func (a *actor) enqueue(task func()) {
	a.mu.Lock()
	a.queue = append(a.queue, task)
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	a.scheduler.submit(a.drain)
}

func (a *actor) drain() {
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.running = false
			a.mu.Unlock()
			return
		}
		task := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.mu.Unlock()

		a.run(task)
	}
}

func (a *actor) run(task func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("Websocket actor task panic: %v", err)
		}
	}()

	task()
}
