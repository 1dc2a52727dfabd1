// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"context"
	"sync/atomic"
)

// ReceiveWindow is the receive side flow control of a socket: reading stops
// while the delivered but unacknowledged bytes reach the limit, and resumes
// as the protocol acknowledges them through Factory.CompletedReceive.
type ReceiveWindow struct {
	limit   int64
	unacked atomic.Int64
	acked   chan struct{}
}

// NewReceiveWindow returns a window of limit bytes. A limit <= 0 never blocks.
func NewReceiveWindow(limit int64) *ReceiveWindow {
	return &ReceiveWindow{
		limit: limit,
		acked: make(chan struct{}, 1),
	}
}

// Wait blocks until the window is open or ctx is done.
func (w *ReceiveWindow) Wait(ctx context.Context) error {
	for w.limit > 0 && w.unacked.Load() >= w.limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.acked:
		}
	}

	return nil
}

// Add records n delivered bytes.
func (w *ReceiveWindow) Add(n int) {
	w.unacked.Add(int64(n))
}

// Ack records n consumed bytes.
func (w *ReceiveWindow) Ack(n int) {
	w.unacked.Add(-int64(n))
	select {
	case w.acked <- struct{}{}:
	default:
	}
}

// Unacked returns the number of delivered bytes not yet acknowledged.
func (w *ReceiveWindow) Unacked() int64 {
	return w.unacked.Load()
}
