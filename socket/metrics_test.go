// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/wangtaoking1/sockbridge/websocket"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] = dp.Value
				}
			}
		}
	}

	return values
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	host := &recordingHost{name: "host", echo: true}
	r := NewRegistry(WithDefaultFactory(nil))
	require.NoError(t, r.Register(host.factory()))
	p := newTestProvider(t, r, WithMeterProvider(mp))

	ref, err := p.CreateWebSocket(websocket.NewAddress("ws", "example.com", 4984, "/db"), nil)
	require.NoError(t, err)
	defer ref.Release()
	ws, s := ref.Get(), socketOfRef(ref)

	values := collect(t, reader)
	assert.EqualValues(t, 1, values["sockbridge.sockets.created"])
	assert.EqualValues(t, 1, values["sockbridge.sockets.bound"])
	assert.GreaterOrEqual(t, values["sockbridge.objects.live"], int64(1))

	ws.Connect()
	s.Opened()
	// a late duplicate does not connect again
	s.Opened()
	s.Received([]byte("hello"))
	ws.Send([]byte("PING"))
	assert.Eventually(t, func() bool { return len(host.Writes()) == 1 }, waitFor, tick)
	ws.Close(websocket.CloseNormal, "")
	assert.Eventually(t, func() bool { return len(p.Sockets()) == 0 }, waitFor, tick)

	values = collect(t, reader)
	assert.EqualValues(t, 1, values["sockbridge.sockets.opened"])
	assert.EqualValues(t, 1, values["sockbridge.sockets.closed"])
	assert.EqualValues(t, 0, values["sockbridge.sockets.bound"])
	assert.EqualValues(t, 4, values["sockbridge.bytes.sent"])
	assert.EqualValues(t, 5, values["sockbridge.bytes.received"])
}
