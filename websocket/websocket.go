// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package websocket holds the transport independent side of a WebSocket
// connection: the address and option value types, and the actor driven
// WebSocket object that the replication protocol talks to.
package websocket

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/refcount"
)

// SendBufferLimit is the number of unwritten bytes above which Send reports
// that the caller should stop sending.
const SendBufferLimit = 64 * 1024

// State is the lifecycle state of a WebSocket.
type State int32

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// WebSocket is one connection as seen by the protocol engine. Engine calls
// (Connect, Send, Close, ReceiveComplete) and transport events (the On*
// methods) are both queued onto the connection's actor, which forwards them
// to the Transport or the Delegate.
//
// WebSocket is reference counted; hold it through a refcount.Retained.
type WebSocket struct {
	refcount.Base

	address   Address
	options   Options
	transport Transport
	actor     *actor
	logger    *zap.SugaredLogger

	state    atomic.Int32
	buffered atomic.Int64

	mu       sync.RWMutex
	delegate Delegate
	handle   any
}

// New creates an unconnected WebSocket whose I/O is carried out by transport.
// A nil scheduler selects DefaultScheduler.
//
// The returned object has a reference count of 0.
func New(transport Transport, address Address, options Options, scheduler *Scheduler) *WebSocket {
	if scheduler == nil {
		scheduler = DefaultScheduler()
	}
	refcount.Instances.Add()

	return &WebSocket{
		address:   address,
		options:   options.Clone(),
		transport: transport,
		actor:     newActor(scheduler),
		logger:    log.With("url", address.URL()),
	}
}

// Finalize implements refcount.Finalizer.
func (ws *WebSocket) Finalize() {
	refcount.Instances.Done()
	ws.logger.Debugw("Websocket finalized", "state", ws.State())
}

func (ws *WebSocket) Address() Address { return ws.address }
func (ws *WebSocket) Options() Options { return ws.options }
func (ws *WebSocket) State() State     { return State(ws.state.Load()) }

// BufferedAmount returns the number of bytes sent but not yet written.
func (ws *WebSocket) BufferedAmount() int64 {
	return ws.buffered.Load()
}

// SetDelegate sets the receiver of the connection's events. It should be
// called before Connect.
func (ws *WebSocket) SetDelegate(d Delegate) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.delegate = d
}

func (ws *WebSocket) getDelegate() Delegate {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.delegate
}

// SetHandle attaches the transport's own handle for this connection.
func (ws *WebSocket) SetHandle(h any) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.handle = h
}

// Handle returns the handle attached by the transport.
func (ws *WebSocket) Handle() any {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.handle
}

// Connect asks the transport to open the connection.
func (ws *WebSocket) Connect() {
	if !ws.state.CompareAndSwap(int32(StateUnconnected), int32(StateConnecting)) {
		ws.logger.Warnw("Connect ignored", "state", ws.State())
		return
	}
	ws.enqueue(func() {
		ws.transport.OpenSocket(ws)
	})
}

// Send queues a binary message. It returns false once the send buffer is
// above SendBufferLimit or the connection is closing; the delegate's
// OnWebSocketWriteable tells when to resume.
func (ws *WebSocket) Send(data []byte) bool {
	switch ws.State() {
	case StateConnecting, StateConnected:
	default:
		ws.logger.Debugw("Send on inactive websocket dropped", "state", ws.State(), "bytes", len(data))
		return false
	}

	buffered := ws.buffered.Add(int64(len(data)))
	ws.enqueue(func() {
		ws.transport.SendBytes(ws, data)
	})

	return buffered <= SendBufferLimit
}

// Close starts a graceful close with a WebSocket close code.
func (ws *WebSocket) Close(code int, message string) {
	for {
		st := ws.State()
		switch st {
		case StateUnconnected:
			if !ws.state.CompareAndSwap(int32(st), int32(StateClosed)) {
				continue
			}
			ws.enqueue(func() {
				ws.finish(NormalClose(message))
			})
			return
		case StateConnecting, StateConnected:
			if !ws.state.CompareAndSwap(int32(st), int32(StateClosing)) {
				continue
			}
			ws.enqueue(func() {
				ws.transport.RequestClose(ws, code, message)
			})
			return
		default:
			return
		}
	}
}

// ReceiveComplete tells the transport that byteCount received bytes have
// been consumed, letting it read more.
func (ws *WebSocket) ReceiveComplete(byteCount int) {
	ws.enqueue(func() {
		if ws.State() == StateClosed {
			return
		}
		ws.transport.ReceiveComplete(ws, byteCount)
	})
}

// OnConnect is called by the transport when the connection is open. The
// connected hooks run on the actor only if the event moved ws to the
// connected state.
func (ws *WebSocket) OnConnect(connected ...func()) {
	ws.enqueue(func() {
		if !ws.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) &&
			!ws.state.CompareAndSwap(int32(StateUnconnected), int32(StateConnected)) {
			ws.logger.Debugw("Connect event ignored", "state", ws.State())
			return
		}
		ws.logger.Debug("Websocket connected")
		for _, fn := range connected {
			fn()
		}
		if d := ws.getDelegate(); d != nil {
			d.OnWebSocketConnect(ws)
		}
	})
}

// OnReceive is called by the transport with an incoming message.
func (ws *WebSocket) OnReceive(data []byte) {
	ws.enqueue(func() {
		if ws.State() == StateClosed {
			return
		}
		d := ws.getDelegate()
		if d == nil {
			// nobody will consume it
			ws.transport.ReceiveComplete(ws, len(data))
			return
		}
		d.OnWebSocketMessage(ws, data)
	})
}

// OnWriteComplete is called by the transport after byteCount sent bytes
// were written.
func (ws *WebSocket) OnWriteComplete(byteCount int) {
	ws.enqueue(func() {
		after := ws.buffered.Add(-int64(byteCount))
		before := after + int64(byteCount)
		if before > SendBufferLimit && after <= SendBufferLimit {
			if d := ws.getDelegate(); d != nil {
				d.OnWebSocketWriteable(ws)
			}
		}
	})
}

// OnCloseRequested is called by the transport when the peer started a close
// handshake; the close is echoed back.
func (ws *WebSocket) OnCloseRequested(code int, message string) {
	ws.enqueue(func() {
		st := ws.State()
		if st != StateConnecting && st != StateConnected {
			return
		}
		if !ws.state.CompareAndSwap(int32(st), int32(StateClosing)) {
			return
		}
		ws.transport.RequestClose(ws, code, message)
	})
}

// OnClose is called by the transport when the connection is gone. Only the
// first call has an effect.
func (ws *WebSocket) OnClose(status CloseStatus) {
	ws.enqueue(func() {
		if State(ws.state.Swap(int32(StateClosed))) == StateClosed {
			return
		}
		ws.finish(status)
	})
}

func (ws *WebSocket) finish(status CloseStatus) {
	ws.logger.Debugw("Websocket closed", "status", status.String())
	if d := ws.getDelegate(); d != nil {
		d.OnWebSocketClose(ws, status)
	}
	ws.transport.CloseSocket(ws)
}

func (ws *WebSocket) enqueue(task func()) {
	refcount.Retain(ws)
	ws.actor.enqueue(func() {
		defer refcount.Release(ws)
		task()
	})
}
