// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package socket bridges WebSockets to socket implementations supplied by
// the host application as a table of callbacks.
package socket

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/refcount"
	"github.com/wangtaoking1/sockbridge/websocket"
)

// Provider creates WebSockets whose I/O goes through a socket Factory, and
// routes the host's notifications back to them.
type Provider struct {
	registry  *Registry
	scheduler *websocket.Scheduler
	metrics   *metrics
	bindings  bindings
}

var _ websocket.Provider = (*Provider)(nil)

// ProviderOption configures a Provider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	scheduler     *websocket.Scheduler
	meterProvider metric.MeterProvider
}

// WithScheduler runs the WebSockets' actors on s instead of the default
// scheduler.
func WithScheduler(s *websocket.Scheduler) ProviderOption {
	return func(o *providerOptions) {
		o.scheduler = s
	}
}

// WithMeterProvider records metrics with mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) ProviderOption {
	return func(o *providerOptions) {
		o.meterProvider = mp
	}
}

// NewProvider returns a provider using the factories of registry. A nil
// registry selects DefaultRegistry.
func NewProvider(registry *Registry, opts ...ProviderOption) *Provider {
	o := &providerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if registry == nil {
		registry = DefaultRegistry
	}

	return &Provider{
		registry:  registry,
		scheduler: o.scheduler,
		metrics:   newMetrics(o.meterProvider),
	}
}

// CreateWebSocket returns an unopened WebSocket for address, bound to a new
// socket of the active factory.
func (p *Provider) CreateWebSocket(address websocket.Address,
	options websocket.Options,
) (refcount.Retained[*websocket.WebSocket], error) {
	f, err := p.registry.EnsureInitialized()
	if err != nil {
		return refcount.Retained[*websocket.WebSocket]{}, err
	}

	ws := refcount.NewRetained(websocket.New(p, address, options, p.scheduler))
	p.bind(newSocket(p, f, nil, address.URL()), ws.Get())

	return ws, nil
}

// CreateWebSocketWithHandle creates a WebSocket whose I/O goes through f and
// binds it to a new socket carrying the host's native handle. The binding
// owns the WebSocket until the socket closes.
func (p *Provider) CreateWebSocketWithHandle(f Factory, native any,
	address Address, options websocket.Options,
) (*Socket, error) {
	if err := ValidateFactory(f); err != nil {
		return nil, err
	}

	addr := WebSocketAddress(address)
	s := newSocket(p, &f, native, addr.URL())
	p.bind(s, websocket.New(p, addr, options, p.scheduler))

	return s, nil
}

func (p *Provider) bind(s *Socket, ws *websocket.WebSocket) {
	ws.SetHandle(s)
	p.bindings.insert(s, ws)
	p.metrics.socketCreated()
	s.logger.Debug("Socket created")
}

// WebSocketFrom returns a new reference to the WebSocket bound to s. The
// handle is empty once the socket closed. The caller must release it.
func (p *Provider) WebSocketFrom(s *Socket) refcount.Retained[*websocket.WebSocket] {
	if s == nil {
		return refcount.Retained[*websocket.WebSocket]{}
	}

	return p.bindings.lookup(s)
}

// Sockets returns the currently bound sockets.
func (p *Provider) Sockets() []*Socket {
	return p.bindings.sockets()
}

// CloseAll starts a graceful close of every bound socket.
func (p *Provider) CloseAll(code int, message string) {
	for _, s := range p.bindings.sockets() {
		ws := p.bindings.lookup(s)
		if ws.IsNil() {
			continue
		}
		ws.Get().Close(code, message)
		ws.Release()
	}
}

// SocketInfo describes a bound socket.
type SocketInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	State    string `json:"state"`
	Buffered int64  `json:"buffered"`
}

// Describe returns the state of every bound socket.
func (p *Provider) Describe() []SocketInfo {
	var infos []SocketInfo
	for _, s := range p.bindings.sockets() {
		ws := p.bindings.lookup(s)
		if ws.IsNil() {
			continue
		}
		infos = append(infos, SocketInfo{
			ID:       s.ID(),
			URL:      ws.Get().Address().URL(),
			State:    ws.Get().State().String(),
			Buffered: ws.Get().BufferedAmount(),
		})
		ws.Release()
	}

	return infos
}

func socketOf(ws *websocket.WebSocket) *Socket {
	s, _ := ws.Handle().(*Socket)
	if s == nil {
		log.Warnw("WebSocket has no socket", "url", ws.Address().URL())
	}

	return s
}

// OpenSocket implements websocket.Transport.
func (p *Provider) OpenSocket(ws *websocket.WebSocket) {
	s := socketOf(ws)
	if s == nil {
		return
	}
	s.logger.Debug("Opening socket")
	s.factory.Open(s, AddressFrom(ws.Address()), ws.Options())
}

// RequestClose implements websocket.Transport. It is a no-op once the socket
// is unbound.
func (p *Provider) RequestClose(ws *websocket.WebSocket, code int, message string) {
	s := socketOf(ws)
	if s == nil || !p.bindings.contains(s) {
		return
	}
	s.logger.Debugw("Requesting close", "code", code, "message", message)
	s.closeForwarded.Store(true)
	s.factory.Close(s, code, message)
}

// CloseSocket implements websocket.Transport. It unbinds the socket and, if
// the host was not asked to close it yet, aborts it. Calling it again has no
// effect.
func (p *Provider) CloseSocket(ws *websocket.WebSocket) {
	s := socketOf(ws)
	if s == nil || !p.bindings.remove(s) {
		return
	}
	p.metrics.socketClosed()
	s.logger.Debug("Socket unbound")

	if s.closeForwarded.CompareAndSwap(false, true) {
		s.factory.Close(s, 0, "")
	}
}

// SendBytes implements websocket.Transport.
func (p *Provider) SendBytes(ws *websocket.WebSocket, data []byte) {
	s := socketOf(ws)
	if s == nil {
		return
	}
	p.metrics.sent(len(data))
	s.factory.Write(s, data)
}

// ReceiveComplete implements websocket.Transport.
func (p *Provider) ReceiveComplete(ws *websocket.WebSocket, byteCount int) {
	s := socketOf(ws)
	if s == nil {
		return
	}
	s.factory.CompletedReceive(s, byteCount)
}
