// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wangtaoking1/sockbridge/log"
)

const (
	echoPath = "/ws"

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 16 << 20
)

// echoHandler upgrades requests to WebSockets and sends every data message
// back unchanged.
type echoHandler struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newEchoHandler(opts *WebSocketOptions) *echoHandler {
	return &echoHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			EnableCompression: opts.Compression,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *echoHandler) handle(c *gin.Context) {
	id := c.Query("uuid")
	if len(id) == 0 {
		id = uuid.New().String()
	}
	ip := c.GetHeader("True-Client-IP")
	if len(ip) == 0 {
		ip = c.Request.RemoteAddr
	}
	logger := log.From(c.Request.Context()).With("client_id", id, "real_ip", ip)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("Upgrade request failed: %v", err)
		return
	}
	h.track(conn)
	defer h.untrack(conn)

	logger.Debug("Echo client connected")
	conn.SetReadLimit(maxMessageSize)
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			logger.Debugw("Echo client gone", "error", err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(messageType, message); err != nil {
			logger.Infof("Echo write failed: %v", err)
			return
		}
	}
}

func (h *echoHandler) track(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *echoHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()

	_ = conn.Close()
}

// closeAll asks every connected client to go away. The clients answer with
// their own close frame, which ends their handler.
func (h *echoHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
}

func (h *echoHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
