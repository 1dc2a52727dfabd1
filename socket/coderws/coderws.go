// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package coderws is a socket factory built on github.com/coder/websocket.
package coderws

import (
	"context"
	"net/http"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/socket"
	"github.com/wangtaoking1/sockbridge/websocket"
)

const (
	maxMessageSize = 16 << 20
	pingTimeout    = 10 * time.Second
)

// NewFactory returns a socket factory dialing with coder/websocket.
func NewFactory(opts *socket.DialerOptions) socket.Factory {
	if opts == nil {
		opts = socket.NewDialerOptions()
	}

	return socket.Factory{
		Open: func(s *socket.Socket, address socket.Address, options websocket.Options) {
			c := newConn(s, opts)
			s.SetNativeHandle(c)
			go c.run(address, options)
		},
		Write: func(s *socket.Socket, data []byte) {
			if c := connOf(s); c != nil {
				c.write(data)
			}
		},
		CompletedReceive: func(s *socket.Socket, byteCount int) {
			if c := connOf(s); c != nil {
				c.window.Ack(byteCount)
			}
		},
		Close: func(s *socket.Socket, status int, message string) {
			if c := connOf(s); c != nil {
				c.close(status, message)
			}
		},
		Context: opts,
	}
}

func connOf(s *socket.Socket) *conn {
	c, _ := s.NativeHandle().(*conn)
	return c
}

type conn struct {
	s      *socket.Socket
	opts   *socket.DialerOptions
	window *socket.ReceiveWindow
	logger *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}

	mu      sync.Mutex
	ws      *cws.Conn
	queue   [][]byte
	closing bool
	status  *websocket.CloseStatus
}

func newConn(s *socket.Socket, opts *socket.DialerOptions) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		s:      s,
		opts:   opts,
		window: socket.NewReceiveWindow(opts.ReceiveWindow),
		logger: log.With("socket", s.ID(), "driver", "coder"),
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

func (c *conn) run(address socket.Address, options websocket.Options) {
	defer c.cancel()

	url := socket.WebSocketAddress(address).URL()
	dialOpts := &cws.DialOptions{
		HTTPHeader:      options.Header(),
		Subprotocols:    options.Protocols(),
		CompressionMode: cws.CompressionDisabled,
	}
	if c.opts.Compression {
		dialOpts.CompressionMode = cws.CompressionContextTakeover
	}

	ws, err := socket.DialWithRetry(c.ctx, c.opts, func(ctx context.Context) (*cws.Conn, *http.Response, error) {
		ctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
		defer cancel()
		return cws.Dial(ctx, url, dialOpts)
	})
	if err != nil {
		c.finish(err)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	c.logger.Debugw("Connected", "protocol", ws.Subprotocol())
	c.s.Opened()

	heartbeat := options.Heartbeat()
	if heartbeat == 0 {
		heartbeat = c.opts.Heartbeat
	}
	c.finish(c.serve(ws, heartbeat))
}

func (c *conn) serve(ws *cws.Conn, heartbeat time.Duration) error {
	g, ctx := errgroup.WithContext(c.ctx)
	g.Go(func() error {
		<-ctx.Done()
		_ = ws.CloseNow()
		return nil
	})
	g.Go(func() error {
		return c.readLoop(ctx, ws)
	})
	g.Go(func() error {
		return c.writeLoop(ctx, ws)
	})
	if heartbeat > 0 {
		g.Go(func() error {
			return c.pingLoop(ctx, ws, heartbeat)
		})
	}

	return g.Wait()
}

func (c *conn) readLoop(ctx context.Context, ws *cws.Conn) error {
	for {
		if err := c.window.Wait(ctx); err != nil {
			return err
		}
		_, data, err := ws.Read(ctx)
		if err != nil {
			return err
		}
		c.window.Add(len(data))
		c.s.Received(data)
	}
}

func (c *conn) writeLoop(ctx context.Context, ws *cws.Conn) error {
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
			if err := ws.Write(ctx, cws.MessageBinary, data); err != nil {
				return errors.Wrap(err, "write message")
			}
			c.s.WriteCompleted(len(data))
		}
	}
}

func (c *conn) pingLoop(ctx context.Context, ws *cws.Conn, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				return errors.Wrap(err, "ping")
			}
		}
	}
}

func (c *conn) write(data []byte) {
	c.mu.Lock()
	c.queue = append(c.queue, data)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *conn) pop() ([]byte, bool) {
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

func (c *conn) close(status int, message string) {
	if status == 0 {
		c.cancel()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st := websocket.CloseStatus{Reason: websocket.WebSocketStatus, Code: status, Message: message}
	if c.ws == nil {
		c.status = &st
		c.cancel()
		return
	}
	if c.closing {
		return
	}
	c.closing = true
	c.status = &st

	ws := c.ws
	go func() {
		// blocks until the peer answers or the close times out
		if err := ws.Close(cws.StatusCode(status), message); err != nil {
			c.logger.Debugw("Close handshake failed", "error", err)
		}
	}()
}

func (c *conn) finish(err error) {
	var status websocket.CloseStatus
	var ce cws.CloseError
	if errors.As(err, &ce) {
		status = websocket.CloseStatus{Reason: websocket.WebSocketStatus, Code: int(ce.Code), Message: ce.Reason}
	} else {
		c.mu.Lock()
		requested := c.status
		c.mu.Unlock()
		if requested != nil {
			status = *requested
		} else {
			status = socket.StatusFromError(err)
		}
	}

	c.logger.Debugw("Connection closed", "status", status.String())
	c.s.Closed(status)
}
