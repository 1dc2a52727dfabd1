// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangtaoking1/sockbridge/server/middleware"
	"github.com/wangtaoking1/sockbridge/socket"
	ws "github.com/wangtaoking1/sockbridge/websocket"
)

type fakeLister []socket.SocketInfo

func (l fakeLister) Describe() []socket.SocketInfo { return l }

func newTestServer(t *testing.T, opts *Options, sockets SocketLister) (*apiServer, *httptest.Server) {
	t.Helper()
	s, ok := New(opts, sockets).(*apiServer)
	require.True(t, ok)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return s, hs
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestNew_NilOptions(t *testing.T) {
	assert.Nil(t, New(nil, nil))
}

func TestServer_Healthz(t *testing.T) {
	_, hs := newTestServer(t, NewOptions(), nil)

	resp, body := get(t, hs.URL+healthzPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}

func TestServer_RequestIDKept(t *testing.T) {
	_, hs := newTestServer(t, NewOptions(), nil)

	req, err := http.NewRequest(http.MethodGet, hs.URL+healthzPath, nil)
	require.NoError(t, err)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-1", resp.Header.Get(middleware.RequestIDHeader))
}

func TestServer_Cors(t *testing.T) {
	opts := NewOptions()
	opts.Middlewares = []string{"cors", "unknown"}
	_, hs := newTestServer(t, opts, nil)

	req, err := http.NewRequest(http.MethodOptions, hs.URL+healthzPath, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://tools.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_DebugSockets(t *testing.T) {
	lister := fakeLister{{ID: "a", URL: "ws://h:1/db", State: "connected", Buffered: 3}}
	_, hs := newTestServer(t, NewOptions(), lister)

	resp, body := get(t, hs.URL+debugSocketsPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list socketList
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, []socket.SocketInfo(lister), list.Sockets)
}

func TestServer_DebugSocketsEmpty(t *testing.T) {
	_, hs := newTestServer(t, NewOptions(), fakeLister(nil))

	_, body := get(t, hs.URL+debugSocketsPath)
	assert.JSONEq(t, `{"count":0,"sockets":[]}`, string(body))
}

func TestServer_RoutesDisabled(t *testing.T) {
	opts := NewOptions()
	opts.Healthz = false
	opts.Debug = false
	opts.WebSocket.Echo = false
	_, hs := newTestServer(t, opts, fakeLister(nil))

	for _, path := range []string{healthzPath, debugSocketsPath, echoPath} {
		resp, _ := get(t, hs.URL+path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestServer_Profiling(t *testing.T) {
	opts := NewOptions()
	opts.Profiling = true
	_, hs := newTestServer(t, opts, nil)

	resp, _ := get(t, hs.URL+"/debug/pprof/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Setup(t *testing.T) {
	s, hs := newTestServer(t, NewOptions(), nil)
	require.NoError(t, s.Setup(nil))
	require.NoError(t, s.Setup(func(g *gin.Engine) error {
		g.GET("/custom", func(c *gin.Context) { c.String(http.StatusOK, "custom") })
		return nil
	}))
	assert.Error(t, s.Setup(func(*gin.Engine) error { return io.EOF }))

	_, body := get(t, hs.URL+"/custom")
	assert.Equal(t, "custom", string(body))
}

func wsURL(hs *httptest.Server) string {
	return "ws" + strings.TrimPrefix(hs.URL, "http") + echoPath
}

func TestServer_Echo(t *testing.T) {
	_, hs := newTestServer(t, NewOptions(), nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(hs), nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, msg := range []string{"PING", "hello"} {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(msg)))
		typ, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, typ)
		assert.Equal(t, msg, string(data))
	}
}

func TestServer_EchoGoingAwayOnClose(t *testing.T) {
	s, hs := newTestServer(t, NewOptions(), nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(hs), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.echo.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "%v", err)
	assert.Eventually(t, func() bool { return s.echo.count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_EchoThroughProvider(t *testing.T) {
	_, hs := newTestServer(t, NewOptions(), nil)

	opts := socket.NewDialerOptions()
	opts.MaxRetries = 0
	registry := socket.NewRegistry(socket.WithDefaultFactory(func() socket.Factory {
		return socket.NewDialerFactory(opts)
	}))
	provider := socket.NewProvider(registry)

	addr, err := ws.ParseAddress(wsURL(hs))
	require.NoError(t, err)
	ref, err := provider.CreateWebSocket(addr, nil)
	require.NoError(t, err)
	defer ref.Release()

	var (
		mu       sync.Mutex
		messages []string
		closed   = make(chan ws.CloseStatus, 1)
	)
	ref.Get().SetDelegate(ws.DelegateFuncs{
		Connect: func(w *ws.WebSocket) { w.Send([]byte("PING")) },
		Message: func(w *ws.WebSocket, data []byte) {
			mu.Lock()
			messages = append(messages, string(data))
			mu.Unlock()
			w.ReceiveComplete(len(data))
			w.Close(ws.CloseNormal, "done")
		},
		Close: func(_ *ws.WebSocket, status ws.CloseStatus) { closed <- status },
	})
	ref.Get().Connect()

	select {
	case status := <-closed:
		assert.Equal(t, ws.CloseNormal, status.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("socket did not close")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PING"}, messages)
	assert.Eventually(t, func() bool { return len(provider.Describe()) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestOptions(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--server.http.bind-port=0",
		"--server.https.enabled",
		"--server.websocket.read-buffer-size=-1",
		"--server.debug=false",
	}))
	assert.False(t, opts.Debug)
	assert.Len(t, opts.Validate(), 3)
	assert.Equal(t, "127.0.0.1:0", opts.HTTP.Address())
}

func TestMiddleware_Registry(t *testing.T) {
	assert.Equal(t, []string{"cors", "requestid"}, middleware.Names())
	assert.Nil(t, middleware.Get("missing"))
}
