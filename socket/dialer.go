// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	gws "github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/websocket"
)

const (
	writeTimeout = 10 * time.Second
	// read deadline as a multiple of the ping interval
	heartbeatTimeoutFactor = 3
)

// HandshakeError is a WebSocket handshake answered with a non 101 status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed with HTTP status %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// DialWithRetry calls dial until it succeeds, retrying up to opts.MaxRetries
// times with exponential backoff. Client errors (HTTP 4xx) are not retried.
func DialWithRetry[T any](ctx context.Context, opts *DialerOptions,
	dial func(ctx context.Context) (T, *http.Response, error),
) (T, error) {
	var zero T
	bo := backoff.NewExponentialBackOff()

	for attempt := 0; ; attempt++ {
		conn, resp, err := dial(ctx)
		if err == nil {
			return conn, nil
		}
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			err = &HandshakeError{StatusCode: resp.StatusCode, Err: err}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return zero, err
			}
		}
		if attempt >= opts.MaxRetries || ctx.Err() != nil {
			return zero, err
		}

		sleep := bo.NextBackOff()
		if sleep == backoff.Stop {
			return zero, err
		}
		log.Infow("Dial failed, retrying", "error", err, "attempt", attempt+1, "after", sleep)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// StatusFromError converts a connection error into a close status.
func StatusFromError(err error) websocket.CloseStatus {
	var (
		handshake *HandshakeError
		errno     syscall.Errno
	)
	switch {
	case err == nil:
		return websocket.NormalClose("")
	case errors.As(err, &handshake):
		return websocket.CloseStatus{Reason: websocket.NetworkError, Code: handshake.StatusCode, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return websocket.CloseStatus{Reason: websocket.WebSocketStatus, Code: websocket.CloseAbnormal, Message: "connection aborted"}
	case errors.As(err, &errno):
		return websocket.CloseStatus{Reason: websocket.POSIXError, Code: int(errno), Message: err.Error()}
	default:
		return websocket.CloseStatus{Reason: websocket.NetworkError, Code: websocket.CloseAbnormal, Message: err.Error()}
	}
}

func gorillaStatus(err error) websocket.CloseStatus {
	var ce *gws.CloseError
	if errors.As(err, &ce) {
		return websocket.CloseStatus{Reason: websocket.WebSocketStatus, Code: ce.Code, Message: ce.Text}
	}

	return StatusFromError(err)
}

// NewDialerFactory returns the built-in factory, a WebSocket client on
// gorilla/websocket. Each socket gets its connection as native handle.
func NewDialerFactory(opts *DialerOptions) Factory {
	if opts == nil {
		opts = NewDialerOptions()
	}
	d := &dialer{opts: opts}

	return Factory{
		Open:             d.open,
		Write:            d.write,
		CompletedReceive: d.completedReceive,
		Close:            d.close,
		Context:          opts,
	}
}

type dialer struct {
	opts *DialerOptions
}

func (d *dialer) open(s *Socket, address Address, options websocket.Options) {
	c := newDialConn(s, d.opts)
	s.SetNativeHandle(c)
	go c.run(address, options)
}

func (d *dialer) write(s *Socket, data []byte) {
	if c := dialConnOf(s); c != nil {
		c.write(data)
	}
}

func (d *dialer) completedReceive(s *Socket, byteCount int) {
	if c := dialConnOf(s); c != nil {
		c.window.Ack(byteCount)
	}
}

func (d *dialer) close(s *Socket, status int, message string) {
	if c := dialConnOf(s); c != nil {
		c.close(status, message)
	}
}

func dialConnOf(s *Socket) *dialConn {
	c, _ := s.NativeHandle().(*dialConn)
	if c == nil {
		s.logger.Debug("Socket has no connection")
	}

	return c
}

// dialConn is one client connection of the gorilla dialer.
type dialConn struct {
	s      *Socket
	opts   *DialerOptions
	window *ReceiveWindow

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}

	mu          sync.Mutex
	conn        *gws.Conn
	queue       [][]byte
	closeSent   bool
	peerClosing bool
	status      *websocket.CloseStatus
	closeTimer  *time.Timer
}

func newDialConn(s *Socket, opts *DialerOptions) *dialConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &dialConn{
		s:      s,
		opts:   opts,
		window: NewReceiveWindow(opts.ReceiveWindow),
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

func (c *dialConn) run(address Address, options websocket.Options) {
	defer c.cancel()

	url := WebSocketAddress(address).URL()
	dialer := &gws.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  c.opts.HandshakeTimeout,
		ReadBufferSize:    c.opts.ReadBufferSize,
		WriteBufferSize:   c.opts.WriteBufferSize,
		EnableCompression: c.opts.Compression,
		Subprotocols:      options.Protocols(),
	}
	header := options.Header()

	conn, err := DialWithRetry(c.ctx, c.opts, func(ctx context.Context) (*gws.Conn, *http.Response, error) {
		return dialer.DialContext(ctx, url, header)
	})
	if err != nil {
		c.s.logger.Infow("Dial failed", "error", err)
		c.finish(err)
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	conn.SetCloseHandler(c.handleClose)

	c.s.logger.Debugw("Connected", "protocol", conn.Subprotocol())
	c.s.Opened()

	heartbeat := options.Heartbeat()
	if heartbeat == 0 {
		heartbeat = c.opts.Heartbeat
	}
	c.finish(c.serve(conn, heartbeat))
}

func (c *dialConn) serve(conn *gws.Conn, heartbeat time.Duration) error {
	g, ctx := errgroup.WithContext(c.ctx)
	g.Go(func() error {
		<-ctx.Done()
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		return c.readLoop(ctx, conn, heartbeat)
	})
	g.Go(func() error {
		return c.writeLoop(ctx, conn)
	})
	if heartbeat > 0 {
		g.Go(func() error {
			return c.pingLoop(ctx, conn, heartbeat)
		})
	}

	return g.Wait()
}

func (c *dialConn) readLoop(ctx context.Context, conn *gws.Conn, heartbeat time.Duration) error {
	if heartbeat > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(heartbeatTimeoutFactor * heartbeat))
		})
	}

	for {
		if err := c.window.Wait(ctx); err != nil {
			return err
		}
		if heartbeat > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(heartbeatTimeoutFactor * heartbeat))
		}
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != gws.BinaryMessage && messageType != gws.TextMessage {
			continue
		}
		c.window.Add(len(data))
		c.s.Received(data)
	}
}

func (c *dialConn) writeLoop(ctx context.Context, conn *gws.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}

		for {
			data, ok := c.pop()
			if !ok {
				break
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(gws.BinaryMessage, data); err != nil {
				return errors.Wrap(err, "write message")
			}
			c.s.WriteCompleted(len(data))
		}
	}
}

func (c *dialConn) pingLoop(ctx context.Context, conn *gws.Conn, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := conn.WriteControl(gws.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return errors.Wrap(err, "write ping")
			}
		}
	}
}

// handleClose answers a close frame of the peer and tells the socket about it.
func (c *dialConn) handleClose(code int, text string) error {
	c.mu.Lock()
	sent := c.closeSent
	c.peerClosing = true
	conn := c.conn
	c.mu.Unlock()

	if !sent {
		_ = conn.WriteControl(gws.CloseMessage, gws.FormatCloseMessage(code, ""), time.Now().Add(writeTimeout))
		c.s.CloseRequested(code, text)
	}

	return nil
}

func (c *dialConn) write(data []byte) {
	c.mu.Lock()
	c.queue = append(c.queue, data)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *dialConn) pop() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil, false
	}
	data := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]

	return data, true
}

// close sends a close frame, or aborts the connection when status is 0.
func (c *dialConn) close(status int, message string) {
	if status == 0 {
		c.s.logger.Debug("Aborting connection")
		c.cancel()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		// still dialing
		normal := websocket.NormalClose(message)
		c.status = &normal
		c.cancel()
		return
	}
	if c.closeSent || c.peerClosing {
		return
	}
	c.closeSent = true
	if err := c.conn.WriteControl(gws.CloseMessage, gws.FormatCloseMessage(status, message),
		time.Now().Add(writeTimeout)); err != nil {
		c.s.logger.Debugw("Write close frame failed", "error", err)
		c.cancel()
		return
	}
	c.closeTimer = time.AfterFunc(c.opts.CloseTimeout, c.cancel)
}

func (c *dialConn) finish(err error) {
	status := gorillaStatus(err)

	c.mu.Lock()
	if c.status != nil {
		status = *c.status
	}
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	c.mu.Unlock()

	c.s.logger.Debugw("Connection closed", "status", status.String())
	c.s.Closed(status)
}
