// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package websocket

// Delegate receives the events of a WebSocket. The methods run on the
// WebSocket's actor, one at a time and in the order the transport produced
// the events.
type Delegate interface {
	OnWebSocketConnect(ws *WebSocket)
	OnWebSocketMessage(ws *WebSocket, data []byte)
	// OnWebSocketWriteable is called when the send buffer drains below the
	// limit after Send returned false.
	OnWebSocketWriteable(ws *WebSocket)
	OnWebSocketClose(ws *WebSocket, status CloseStatus)
}

// DelegateFuncs is a helper type, so you can easily provide anonymous
// functions as a Delegate. Nil funcs are skipped.
type DelegateFuncs struct {
	Connect   func(ws *WebSocket)
	Message   func(ws *WebSocket, data []byte)
	Writeable func(ws *WebSocket)
	Close     func(ws *WebSocket, status CloseStatus)
}

var _ Delegate = DelegateFuncs{}

func (d DelegateFuncs) OnWebSocketConnect(ws *WebSocket) {
	if d.Connect != nil {
		d.Connect(ws)
	}
}

func (d DelegateFuncs) OnWebSocketMessage(ws *WebSocket, data []byte) {
	if d.Message != nil {
		d.Message(ws, data)
	}
}

func (d DelegateFuncs) OnWebSocketWriteable(ws *WebSocket) {
	if d.Writeable != nil {
		d.Writeable(ws)
	}
}

func (d DelegateFuncs) OnWebSocketClose(ws *WebSocket, status CloseStatus) {
	if d.Close != nil {
		d.Close(ws, status)
	}
}
