// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package posixsignal

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangtaoking1/sockbridge/shutdown"
)

func waitSig(t *testing.T, c <-chan int) {
	select {
	case <-c:

	case <-time.After(1 * time.Second):
		assert.Fail(t, "Timeout waiting for shutdown.")
	}
}

func TestTrigger_DefaultSignals(t *testing.T) {
	tests := []struct {
		name   string
		signal syscall.Signal
	}{
		{
			name:   "SIGINT signal",
			signal: syscall.SIGINT,
		},
		{
			name:   "SIGTERM signal",
			signal: syscall.SIGTERM,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := make(chan int, 1)
			pst := New()
			defer pst.Stop()
			_ = pst.Start(shutdown.ExecuteFunc(func(trigger shutdown.Trigger) {
				c <- 1
			}))

			_ = syscall.Kill(syscall.Getpid(), tc.signal)
			waitSig(t, c)
		})
	}
}

func TestTrigger_CustomSignal(t *testing.T) {
	c := make(chan int, 1)
	pst := New(syscall.SIGHUP)
	defer pst.Stop()
	_ = pst.Start(shutdown.ExecuteFunc(func(trigger shutdown.Trigger) {
		c <- 1
	}))

	_ = syscall.Kill(syscall.Getpid(), syscall.SIGHUP)
	waitSig(t, c)
}

func TestTrigger_RunsStagesThenExits(t *testing.T) {
	exited := make(chan int, 1)
	pst := New(syscall.SIGUSR1).WithExit(func(code int) { exited <- code })
	defer pst.Stop()

	var order []string
	gs := shutdown.New(pst)
	gs.AddCallback(shutdown.CallbackFunc(func(name string) error {
		order = append(order, "sockets "+name)
		return nil
	}))
	gs.AddStage(shutdown.CallbackFunc(func(string) error {
		order = append(order, "server")
		return nil
	}))
	require.NoError(t, gs.Start())

	_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
	select {
	case code := <-exited:
		assert.Equal(t, 0, code)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not finish")
	}
	assert.Equal(t, []string{"sockets " + Name, "server"}, order)
}
