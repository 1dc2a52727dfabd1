// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangtaoking1/sockbridge/errors"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		raw      string
		scheme   string
		host     string
		port     uint16
		path     string
		database string
	}{
		{"ws://example.com:4984/db", "ws", "example.com", 4984, "/db", "db"},
		{"wss://example.com/db/_blipsync", "wss", "example.com", 0, "/db/_blipsync", "db"},
		{"BLIPS://[::1]:443/travel%20sample", "blips", "::1", 443, "/travel%20sample", "travel sample"},
		{"ws://localhost", "ws", "localhost", 0, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			addr, err := ParseAddress(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, addr.Scheme())
			assert.Equal(t, tt.host, addr.Hostname())
			assert.Equal(t, tt.port, addr.Port())
			assert.Equal(t, tt.path, addr.Path())
			assert.Equal(t, tt.database, addr.DatabaseName())
			assert.False(t, addr.HasDatabaseName())
		})
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, raw := range []string{"", "example.com/db", "ws://:80/db", "ws://host:99999/db", "ws://%zz"} {
		_, err := ParseAddress(raw)
		assert.True(t, errors.Is(err, ErrInvalidAddress), raw)
	}
}

func TestAddress_URL(t *testing.T) {
	assert.Equal(t, "ws://example.com:4984/db", NewAddress("ws", "example.com", 4984, "/db").URL())
	assert.Equal(t, "wss://example.com/db", NewAddress("blips", "example.com", 0, "/db").URL())
	assert.Equal(t, "ws://[::1]:80/", NewAddress("ws", "::1", 80, "/").URL())
	assert.Equal(t, "ws://[::1]", NewAddress("ws", "::1", 0, "").URL())
	assert.Equal(t, "ws://h/a%2Fb", NewAddress("ws", "h", 0, "/a%2Fb").URL())
	assert.Equal(t, "wss://h/db", NewAddress("WSS", "h", 0, "/db").URL())
	assert.Equal(t, "BLIPS", NewAddress("BLIPS", "h", 0, "/db").Scheme())
}

func TestAddress_WithDatabaseName(t *testing.T) {
	addr := NewAddress("ws", "example.com", 4984, "/db")
	renamed := addr.WithDatabaseName("other")

	assert.Equal(t, "other", renamed.DatabaseName())
	assert.True(t, renamed.HasDatabaseName())
	assert.Equal(t, "db", addr.DatabaseName())
	assert.Equal(t, "ws://example.com:4984/db (db=other)", renamed.String())
	assert.Equal(t, "/x", addr.WithPath("/x").Path())
}

func TestAddress_IsSecure(t *testing.T) {
	for scheme, secure := range map[string]bool{"ws": false, "wss": true, "blip": false, "blips": true, "https": true, "WSS": true, "Blips": true, "WS": false} {
		assert.Equal(t, secure, NewAddress(scheme, "h", 0, "").IsSecure(), scheme)
	}
}
