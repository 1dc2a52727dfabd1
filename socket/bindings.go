// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"sync"

	"github.com/wangtaoking1/sockbridge/refcount"
	"github.com/wangtaoking1/sockbridge/websocket"
)

type binding struct {
	mu sync.Mutex
	ws refcount.Retained[*websocket.WebSocket]
}

// bindings maps sockets to their WebSocket. Every socket has its own entry
// lock, so operations on different sockets never wait on each other.
type bindings struct {
	m sync.Map // *Socket -> *binding
}

// insert binds s to ws, retaining ws. It returns false if s is already bound.
func (b *bindings) insert(s *Socket, ws *websocket.WebSocket) bool {
	e := &binding{}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, loaded := b.m.LoadOrStore(s, e); loaded {
		return false
	}
	e.ws = refcount.NewRetained(ws)

	return true
}

// lookup returns a new reference to the WebSocket bound to s, or an empty
// handle. The caller must release it.
func (b *bindings) lookup(s *Socket) refcount.Retained[*websocket.WebSocket] {
	v, ok := b.m.Load(s)
	if !ok {
		return refcount.Retained[*websocket.WebSocket]{}
	}
	e := v.(*binding)
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ws.Clone()
}

func (b *bindings) contains(s *Socket) bool {
	v, ok := b.m.Load(s)
	if !ok {
		return false
	}
	e := v.(*binding)
	e.mu.Lock()
	defer e.mu.Unlock()

	return !e.ws.IsNil()
}

// remove unbinds s and drops the binding's reference. It returns false if s
// was not bound.
func (b *bindings) remove(s *Socket) bool {
	v, ok := b.m.Load(s)
	if !ok {
		return false
	}
	e := v.(*binding)

	e.mu.Lock()
	if e.ws.IsNil() {
		e.mu.Unlock()
		return false
	}
	ws := e.ws.Move()
	b.m.CompareAndDelete(s, e)
	e.mu.Unlock()

	ws.Release()

	return true
}

func (b *bindings) sockets() []*Socket {
	var out []*Socket
	b.m.Range(func(key, _ any) bool {
		out = append(out, key.(*Socket))
		return true
	})

	return out
}
