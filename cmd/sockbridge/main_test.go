// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangtaoking1/sockbridge/server"
	"github.com/wangtaoking1/sockbridge/socket"
	"github.com/wangtaoking1/sockbridge/websocket"
)

func newEchoServer(t *testing.T) string {
	t.Helper()
	hs := httptest.NewServer(server.New(server.NewOptions(), nil).Handler())
	t.Cleanup(hs.Close)
	return "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
}

func testDialOptions(url, driver string) *dialOptions {
	opts := newDialOptions()
	opts.URL = url
	opts.Driver = driver
	opts.Count = 3
	opts.Socket.MaxRetries = 0
	return opts
}

func TestRunDial(t *testing.T) {
	url := newEchoServer(t)

	for _, driver := range []string{driverGorilla, driverCoder} {
		t.Run(driver, func(t *testing.T) {
			opts := testDialOptions(url, driver)
			require.Empty(t, opts.Validate())

			var out bytes.Buffer
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, runDial(ctx, opts, &out))

			table := out.String()
			assert.Contains(t, table, "EVENT")
			assert.Equal(t, 3, strings.Count(table, "received"))
			assert.Equal(t, 3, strings.Count(table, "sent"))
			assert.Contains(t, table, "websocket/1000")
		})
	}
}

func TestRunDial_ZeroCount(t *testing.T) {
	opts := testDialOptions(newEchoServer(t), driverGorilla)
	opts.Count = 0

	var out bytes.Buffer
	require.NoError(t, runDial(context.Background(), opts, &out))
	assert.NotContains(t, out.String(), "sent")
}

func TestRunDial_Unreachable(t *testing.T) {
	hs := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	hs.Close()

	var out bytes.Buffer
	err := runDial(context.Background(), testDialOptions(url, driverGorilla), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed with")
	assert.Contains(t, out.String(), "closed")
}

func TestRunDial_Timeout(t *testing.T) {
	upgrader := gws.Upgrader{}
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer hs.Close()

	opts := testDialOptions("ws"+strings.TrimPrefix(hs.URL, "http")+"/db", driverGorilla)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := runDial(ctx, opts, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange timed out")
}

func TestDialOptions_Validate(t *testing.T) {
	opts := newDialOptions()
	opts.URL = "http://"
	opts.Driver = "nope"
	opts.Count = -1
	opts.Timeout = 0

	assert.Len(t, opts.Validate(), 4)
	assert.Contains(t, opts.Flags().Order, "socket")
}

func TestServeOptions_Complete(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sockbridge.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
upstreams:
  - ws://127.0.0.1:4984/db
shutdown-timeout: 3s
server:
  http:
    bind-port: 9090
socket:
  max-retries: 5
`), 0o600))

	opts := newServeOptions()
	opts.Config = file
	require.NoError(t, opts.Complete())
	assert.Empty(t, opts.Validate())
	assert.Equal(t, []string{"ws://127.0.0.1:4984/db"}, opts.Upstreams)
	assert.Equal(t, 3*time.Second, opts.ShutdownTimeout)
	assert.Equal(t, 9090, opts.Server.HTTP.BindPort)
	assert.Equal(t, 5, opts.Socket.MaxRetries)
	assert.True(t, opts.Server.Healthz)
	assert.Contains(t, opts.String(), `"upstreams":["ws://127.0.0.1:4984/db"]`)

	opts.Config = filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(t, opts.Complete())
}

func TestServeOptions_InvalidUpstream(t *testing.T) {
	opts := newServeOptions()
	opts.Upstreams = []string{"::"}
	assert.Len(t, opts.Validate(), 1)
}

func TestOpenUpstream(t *testing.T) {
	dialer := socket.NewDialerOptions()
	dialer.MaxRetries = 0
	registry := socket.NewRegistry(socket.WithDefaultFactory(func() socket.Factory {
		return socket.NewDialerFactory(dialer)
	}))
	provider := socket.NewProvider(registry)

	require.NoError(t, openUpstream(provider, newEchoServer(t)))
	require.Eventually(t, func() bool {
		infos := provider.Describe()
		return len(infos) == 1 && infos[0].State == websocket.StateConnected.String()
	}, 5*time.Second, 5*time.Millisecond)

	provider.CloseAll(websocket.CloseGoingAway, "shutdown")
	assert.Eventually(t, func() bool { return len(provider.Describe()) == 0 }, 5*time.Second, 5*time.Millisecond)
}
