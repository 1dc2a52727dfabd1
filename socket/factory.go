// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"strings"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/websocket"
)

var (
	// ErrInvalidFactory is returned when a factory misses a mandatory callback.
	ErrInvalidFactory = errors.New("invalid socket factory")
	// ErrNoFactory is returned when no factory is registered and none can be
	// installed by default.
	ErrNoFactory = errors.New("no socket factory registered")
	// ErrUnreachablePeer is returned when a peer database exposes no address
	// that can be dialed.
	ErrUnreachablePeer = errors.New("peer database is not reachable")
)

// Factory is the table of callbacks through which the host carries out the
// socket I/O. All four callbacks are mandatory. They are called from the
// socket's actor and must not block; results are reported back through the
// Socket notification methods.
type Factory struct {
	// Open starts connecting s to address.
	Open func(s *Socket, address Address, options websocket.Options)
	// Write sends one message. Ownership of data passes to the host.
	Write func(s *Socket, data []byte)
	// CompletedReceive acknowledges byteCount received bytes as consumed.
	CompletedReceive func(s *Socket, byteCount int)
	// Close asks for a close handshake with a WebSocket close code, or for an
	// immediate abort when status is 0.
	Close func(s *Socket, status int, message string)

	// Context is an arbitrary value owned by the host.
	Context any
}

// ValidateFactory checks that every mandatory callback of f is set.
func ValidateFactory(f Factory) error {
	var missing []string
	if f.Open == nil {
		missing = append(missing, "open")
	}
	if f.Write == nil {
		missing = append(missing, "write")
	}
	if f.CompletedReceive == nil {
		missing = append(missing, "completedReceive")
	}
	if f.Close == nil {
		missing = append(missing, "close")
	}
	if len(missing) != 0 {
		return errors.Wrapf(ErrInvalidFactory, "missing %s", strings.Join(missing, ", "))
	}

	return nil
}
