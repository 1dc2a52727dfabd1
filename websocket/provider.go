// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package websocket

import "github.com/wangtaoking1/sockbridge/refcount"

// Transport carries out the I/O requested by a WebSocket. Every method is
// called from the WebSocket's actor and must not block on the network; the
// results come back later through the WebSocket's On* methods.
type Transport interface {
	// OpenSocket starts connecting to ws.Address().
	OpenSocket(ws *WebSocket)
	// RequestClose asks for a graceful close handshake.
	RequestClose(ws *WebSocket, code int, message string)
	// CloseSocket tears the connection down. Called once, when ws reaches
	// its closed state.
	CloseSocket(ws *WebSocket)
	// SendBytes writes one message. Ownership of data passes to the transport.
	SendBytes(ws *WebSocket, data []byte)
	// ReceiveComplete acknowledges byteCount received bytes as consumed.
	ReceiveComplete(ws *WebSocket, byteCount int)
}

// Provider creates WebSockets bound to one transport strategy.
type Provider interface {
	Transport

	// CreateWebSocket returns a new, unopened WebSocket for address.
	CreateWebSocket(address Address, options Options) (refcount.Retained[*WebSocket], error)
}
