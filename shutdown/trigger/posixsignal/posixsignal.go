// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package posixsignal

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/shutdown"
)

// Name defines shutdown manager name.
const Name = "PosixSignalTrigger"

// Trigger implements the shutdown Trigger interface that is added
// to GracefulShutdown. Initialize with New.
type Trigger struct {
	signals []os.Signal
	exit    func(code int)
	c       chan os.Signal
	stop    chan struct{}
}

var _ shutdown.Trigger = (*Trigger)(nil)

// GetName returns name of this trigger.
func (t *Trigger) GetName() string {
	return Name
}

// Start starts listening for posix signals.
func (t *Trigger) Start(executor shutdown.Executor) error {
	signal.Notify(t.c, t.signals...)

	go func() {
		// Block until a signal is received.
		select {
		case sig := <-t.c:
			log.Infow("Received signal", "signal", sig.String())
		case <-t.stop:
			return
		}

		// Trigger the shutdown execution.
		executor.Execute(t)
	}()

	return nil
}

// Stop stops listening without triggering a shutdown.
func (t *Trigger) Stop() {
	signal.Stop(t.c)
	close(t.stop)
}

// After do exits after shutdown.
func (t *Trigger) After() {
	log.Flush()
	t.exit(0)
}

// WithExit replaces os.Exit, called once the shutdown finished.
func (t *Trigger) WithExit(exit func(code int)) *Trigger {
	t.exit = exit
	return t
}

// New initializes the PosixSignalTrigger.
// You can provide os.Signal-s as arguments, if none given,
// it will use SIGINT and SIGTERM default.
func New(sig ...os.Signal) *Trigger {
	if len(sig) == 0 {
		sig = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	return &Trigger{
		signals: sig,
		exit:    os.Exit,
		c:       make(chan os.Signal, 1),
		stop:    make(chan struct{}),
	}
}
