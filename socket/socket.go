// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/websocket"
)

// Socket is the host-facing token of one connection. The host gets it in
// every Factory callback and passes it back through the notification methods
// below; it carries the host's own native handle.
//
// Notifications for a socket that is no longer bound are ignored.
type Socket struct {
	id       uuid.UUID
	provider *Provider
	factory  *Factory
	logger   *zap.SugaredLogger

	mu     sync.RWMutex
	native any

	// set once the host was told to close, or told us it closed
	closeForwarded atomic.Bool
}

func newSocket(p *Provider, f *Factory, native any, url string) *Socket {
	id := uuid.New()
	return &Socket{
		id:       id,
		provider: p,
		factory:  f,
		native:   native,
		logger:   log.With("socket", id.String(), "url", url),
	}
}

// ID returns the unique id of the socket.
func (s *Socket) ID() string {
	return s.id.String()
}

// NativeHandle returns the host's handle for this connection.
func (s *Socket) NativeHandle() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.native
}

// SetNativeHandle attaches the host's handle, typically from Factory.Open.
func (s *Socket) SetNativeHandle(h any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.native = h
}

// Context returns the Context of the factory the socket was created with.
func (s *Socket) Context() any {
	return s.factory.Context
}

func (s *Socket) String() string {
	return s.id.String()
}

// Opened tells that the connection is established.
func (s *Socket) Opened() {
	s.notify("opened", func(ws *websocket.WebSocket) {
		ws.OnConnect(s.provider.metrics.opened)
	})
}

// Received delivers an incoming message. The host must not reuse data.
func (s *Socket) Received(data []byte) {
	s.notify("received", func(ws *websocket.WebSocket) {
		s.provider.metrics.received(len(data))
		ws.OnReceive(data)
	})
}

// WriteCompleted tells that byteCount bytes passed to Factory.Write were
// written.
func (s *Socket) WriteCompleted(byteCount int) {
	s.notify("write completed", func(ws *websocket.WebSocket) {
		ws.OnWriteComplete(byteCount)
	})
}

// CloseRequested tells that the peer started a close handshake.
func (s *Socket) CloseRequested(code int, message string) {
	s.notify("close requested", func(ws *websocket.WebSocket) {
		ws.OnCloseRequested(code, message)
	})
}

// Closed tells that the connection is gone. The host will not be asked to
// close it again.
func (s *Socket) Closed(status websocket.CloseStatus) {
	s.closeForwarded.Store(true)
	s.notify("closed", func(ws *websocket.WebSocket) {
		ws.OnClose(status)
	})
}

func (s *Socket) notify(event string, fn func(ws *websocket.WebSocket)) {
	ws := s.provider.bindings.lookup(s)
	if ws.IsNil() {
		s.logger.Debugw("Ignored event on unbound socket", "event", event)
		return
	}
	defer ws.Release()

	fn(ws.Get())
}
