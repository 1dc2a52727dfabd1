// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package shutdown runs cleanup callbacks in ordered stages when a trigger,
// like a posix signal, requests the process to stop.
package shutdown

import (
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/log"
)

// ErrTimeout is reported when a stage did not finish in time.
var ErrTimeout = errors.New("shutdown timed out")

// Callback is an interface you have to implement for callbacks.
type Callback interface {
	// OnShutdown will be called when shutdown is triggered. The parameter
	// is the name of the shutdown trigger that trigger shutdown.
	OnShutdown(string) error
}

// CallbackFunc is a helper type, so you can easily provide anonymous functions
// as shutdown Callbacks.
type CallbackFunc func(string) error

func (f CallbackFunc) OnShutdown(trigger string) error {
	return f(trigger)
}

// ErrorHandler is an interface you can pass to SetErrorHandler to
// handle asynchronous errors.
type ErrorHandler interface {
	OnError(error)
}

// ErrorFunc is a helper type, so you can easily provide anonymous functions
// as ErrorHandlers.
type ErrorFunc func(err error)

// OnError defines the action needed to run when error occurred.
func (f ErrorFunc) OnError(err error) {
	f(err)
}

// Executor is the interface of execute func after triggering shutdown.
type Executor interface {
	Execute(Trigger)
}

// ExecuteFunc defines the execute func.
type ExecuteFunc func(Trigger)

func (f ExecuteFunc) Execute(trigger Trigger) {
	f(trigger)
}

// Trigger is an interface implemented by shutdown triggers.
type Trigger interface {
	// GetName returns the name of the trigger.
	GetName() string
	// Start starts the trigger to listen some shutdown requests.
	Start(Executor) error
	// After fun do something after shutdown, like exit.
	After()
}

// Shutdown is an interface implemented by shutdownController,
// that receives shutdown triggers when shutdown is requested.
type Shutdown interface {
	// Start starts the graceful shutdown controller.
	Start() error
	// AddCallback adds callback func to the last stage.
	AddCallback(Callback)
	// AddStage appends a stage, which runs after all previous stages
	// finished. Callbacks of one stage run concurrently.
	AddStage(...Callback)
	// SetErrorHandler set errorHandler for the shutdown controller.
	SetErrorHandler(ErrorHandler)
}

// Option configures the shutdown controller.
type Option func(*shutdownController)

// WithTimeout bounds the time every stage may take. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(g *shutdownController) {
		g.timeout = d
	}
}

type shutdownController struct {
	triggers     []Trigger
	stages       [][]Callback
	errorHandler ErrorHandler
	timeout      time.Duration

	mu   sync.Mutex
	once sync.Once
}

// New returns a new graceful shutdown instance with the specified triggers.
func New(triggers ...Trigger) Shutdown {
	return NewWithOptions(triggers)
}

// NewWithOptions is New with options.
func NewWithOptions(triggers []Trigger, opts ...Option) Shutdown {
	g := &shutdownController{
		triggers: triggers,
		stages:   [][]Callback{nil},
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *shutdownController) AddCallback(cb Callback) {
	g.mu.Lock()
	defer g.mu.Unlock()

	last := len(g.stages) - 1
	g.stages[last] = append(g.stages[last], cb)
}

func (g *shutdownController) AddStage(cbs ...Callback) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.stages[len(g.stages)-1]) == 0 {
		g.stages[len(g.stages)-1] = cbs
		return
	}
	g.stages = append(g.stages, cbs)
}

func (g *shutdownController) SetErrorHandler(h ErrorHandler) {
	g.errorHandler = h
}

func (g *shutdownController) Start() error {
	for _, t := range g.triggers {
		if err := t.Start(g.executeFunc()); err != nil {
			return errors.WithMessagef(err, "start shutdown trigger %s error", t.GetName())
		}
	}

	return nil
}

func (g *shutdownController) executeFunc() Executor {
	return ExecuteFunc(func(trigger Trigger) {
		// later triggers only wait for the first run
		g.once.Do(func() {
			log.Infow("Shutting down", "trigger", trigger.GetName())

			g.mu.Lock()
			stages := append([][]Callback(nil), g.stages...)
			g.mu.Unlock()

			for i, stage := range stages {
				g.runStage(i, stage, trigger.GetName())
			}
		})

		trigger.After()
	})
}

func (g *shutdownController) runStage(index int, stage []Callback, trigger string) {
	if len(stage) == 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		var wg conc.WaitGroup
		for _, cb := range stage {
			wg.Go(func() {
				g.handleError(cb.OnShutdown(trigger))
			})
		}
		if r := wg.WaitAndRecover(); r != nil {
			g.handleError(errors.Errorf("shutdown callback panicked: %v", r.Value))
		}
	}()

	if g.timeout <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(g.timeout):
		g.handleError(errors.WithMessagef(ErrTimeout, "stage %d", index))
	}
}

func (g *shutdownController) handleError(err error) {
	if err == nil {
		return
	}
	if g.errorHandler == nil {
		log.Warnw("Shutdown callback failed", "error", err)
		return
	}
	g.errorHandler.OnError(err)
}
