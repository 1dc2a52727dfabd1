// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"net/url"
	"strings"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/websocket"
)

// Address is the host's plain form of a remote endpoint.
type Address struct {
	Scheme       string `json:"scheme"`
	Hostname     string `json:"hostname"`
	Port         uint16 `json:"port"`
	Path         string `json:"path"`
	DatabaseName string `json:"databaseName,omitempty"`
}

// ListenerConfig is where a peer database accepts connections.
type ListenerConfig struct {
	TLS      bool
	Hostname string
	Port     uint16
}

// PeerDatabase is a database served by another process that can be
// replicated with directly.
type PeerDatabase interface {
	Name() string
	// ListenAddress returns the listener of the peer, false if it has none.
	ListenAddress() (ListenerConfig, bool)
}

// WebSocketAddress converts a host address.
func WebSocketAddress(a Address) websocket.Address {
	addr := websocket.NewAddress(a.Scheme, a.Hostname, a.Port, a.Path)
	if a.DatabaseName != "" {
		addr = addr.WithDatabaseName(a.DatabaseName)
	}

	return addr
}

// AddressFrom converts to a host address.
func AddressFrom(a websocket.Address) Address {
	out := Address{
		Scheme:   a.Scheme(),
		Hostname: a.Hostname(),
		Port:     a.Port(),
		Path:     a.Path(),
	}
	if a.HasDatabaseName() {
		out.DatabaseName = a.DatabaseName()
	}

	return out
}

// WebSocketAddressWithDatabase converts a host address, replacing the
// database name, which is the first path segment, with remoteDB. The rest
// of the path is kept.
func WebSocketAddressWithDatabase(a Address, remoteDB string) websocket.Address {
	if remoteDB == "" {
		return WebSocketAddress(a)
	}

	var rest string
	if _, after, ok := strings.Cut(strings.TrimPrefix(a.Path, "/"), "/"); ok {
		rest = "/" + after
	}
	path := "/" + url.PathEscape(remoteDB) + rest

	return websocket.NewAddress(a.Scheme, a.Hostname, a.Port, path).WithDatabaseName(remoteDB)
}

// PeerWebSocketAddress returns the address of a peer database, built from its
// listener and its name.
func PeerWebSocketAddress(peer PeerDatabase) (websocket.Address, error) {
	if peer == nil {
		return websocket.Address{}, ErrUnreachablePeer
	}
	l, ok := peer.ListenAddress()
	if !ok || l.Hostname == "" || l.Port == 0 {
		return websocket.Address{}, errors.WithMessagef(ErrUnreachablePeer, "database %q", peer.Name())
	}

	scheme := "ws"
	if l.TLS {
		scheme = "wss"
	}
	path := "/" + url.PathEscape(peer.Name())

	return websocket.NewAddress(scheme, l.Hostname, l.Port, path).WithDatabaseName(peer.Name()), nil
}
