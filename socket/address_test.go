// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangtaoking1/sockbridge/errors"
)

func TestAddressRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("host address survives a round trip", prop.ForAll(
		func(scheme, host string, port uint16, path, db string) bool {
			a := Address{Scheme: scheme, Hostname: host, Port: port, Path: "/" + path, DatabaseName: db}
			return AddressFrom(WebSocketAddress(a)) == a
		},
		gen.OneConstOf("ws", "wss", "blip", "blips", "WS", "Wss", "BLIPS"),
		gen.Identifier(),
		gen.UInt16(),
		gen.Identifier(),
		gen.OneGenOf(gen.Const(""), gen.AlphaString()),
	))

	properties.Property("scheme case is kept and does not change security", prop.ForAll(
		func(scheme string) bool {
			a := Address{Scheme: scheme, Hostname: "example.com", Path: "/db"}
			out := WebSocketAddress(a)
			lower := WebSocketAddress(Address{Scheme: strings.ToLower(scheme), Hostname: "example.com", Path: "/db"})
			return out.Scheme() == scheme && out.IsSecure() == lower.IsSecure() && out.URL() == lower.URL()
		},
		gen.OneConstOf("WS", "wSs", "Blip", "BLIPS"),
	))

	properties.Property("database override replaces only the first path segment", prop.ForAll(
		func(host string, port uint16, oldDB, rest, newDB string) bool {
			a := Address{Scheme: "wss", Hostname: host, Port: port, Path: "/" + oldDB + "/" + rest}
			out := WebSocketAddressWithDatabase(a, newDB)
			return out.Scheme() == "wss" &&
				out.Hostname() == host &&
				out.Port() == port &&
				out.Path() == "/"+newDB+"/"+rest &&
				out.DatabaseName() == newDB
		},
		gen.Identifier(),
		gen.UInt16(),
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestWebSocketAddressWithDatabase(t *testing.T) {
	tests := []struct {
		path     string
		remoteDB string
		want     string
	}{
		{"/old/_blipsync", "new", "/new/_blipsync"},
		{"/old", "new", "/new"},
		{"/old/", "new", "/new/"},
		{"", "new", "/new"},
		{"/old/_blipsync", "travel sample", "/travel%20sample/_blipsync"},
		{"/old/_blipsync", "", "/old/_blipsync"},
	}
	for _, tt := range tests {
		t.Run(tt.path+"->"+tt.remoteDB, func(t *testing.T) {
			a := Address{Scheme: "ws", Hostname: "example.com", Port: 4984, Path: tt.path}
			out := WebSocketAddressWithDatabase(a, tt.remoteDB)
			assert.Equal(t, tt.want, out.Path())
			if tt.remoteDB != "" {
				assert.Equal(t, tt.remoteDB, out.DatabaseName())
			}
		})
	}
}

type fakePeer struct {
	name     string
	listener ListenerConfig
	listens  bool
}

func (p fakePeer) Name() string                          { return p.name }
func (p fakePeer) ListenAddress() (ListenerConfig, bool) { return p.listener, p.listens }

func TestPeerWebSocketAddress(t *testing.T) {
	addr, err := PeerWebSocketAddress(fakePeer{
		name:     "db",
		listener: ListenerConfig{TLS: true, Hostname: "peer.local", Port: 4985},
		listens:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "wss://peer.local:4985/db", addr.URL())
	assert.Equal(t, "db", addr.DatabaseName())

	addr, err = PeerWebSocketAddress(fakePeer{
		name:     "db",
		listener: ListenerConfig{Hostname: "10.0.0.2", Port: 4984},
		listens:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ws", addr.Scheme())
}

func TestPeerWebSocketAddress_Unreachable(t *testing.T) {
	peers := []PeerDatabase{
		nil,
		fakePeer{name: "db"},
		fakePeer{name: "db", listener: ListenerConfig{Port: 4984}, listens: true},
		fakePeer{name: "db", listener: ListenerConfig{Hostname: "h"}, listens: true},
	}
	for _, peer := range peers {
		_, err := PeerWebSocketAddress(peer)
		assert.True(t, errors.Is(err, ErrUnreachablePeer))
	}
}
