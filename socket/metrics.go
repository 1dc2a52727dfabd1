// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/refcount"
)

const meterName = "github.com/wangtaoking1/sockbridge/socket"

type metrics struct {
	created       metric.Int64Counter
	openedCount   metric.Int64Counter
	closed        metric.Int64Counter
	bytesSent     metric.Int64Counter
	bytesReceived metric.Int64Counter
	bound         metric.Int64UpDownCounter
}

func newMetrics(mp metric.MeterProvider) *metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &metrics{}

	var err error
	if m.created, err = meter.Int64Counter("sockbridge.sockets.created",
		metric.WithDescription("WebSockets created through the provider"),
		metric.WithUnit("{socket}")); err != nil {
		log.Warnw("Failed to create metric", "name", "sockbridge.sockets.created", "error", err)
	}
	if m.openedCount, err = meter.Int64Counter("sockbridge.sockets.opened",
		metric.WithDescription("Sockets reported open by the host"),
		metric.WithUnit("{socket}")); err != nil {
		log.Warnw("Failed to create metric", "name", "sockbridge.sockets.opened", "error", err)
	}
	if m.closed, err = meter.Int64Counter("sockbridge.sockets.closed",
		metric.WithDescription("Sockets unbound after reaching the closed state"),
		metric.WithUnit("{socket}")); err != nil {
		log.Warnw("Failed to create metric", "name", "sockbridge.sockets.closed", "error", err)
	}
	if m.bytesSent, err = meter.Int64Counter("sockbridge.bytes.sent",
		metric.WithDescription("Bytes handed to the host for writing"),
		metric.WithUnit("By")); err != nil {
		log.Warnw("Failed to create metric", "name", "sockbridge.bytes.sent", "error", err)
	}
	if m.bytesReceived, err = meter.Int64Counter("sockbridge.bytes.received",
		metric.WithDescription("Bytes delivered by the host"),
		metric.WithUnit("By")); err != nil {
		log.Warnw("Failed to create metric", "name", "sockbridge.bytes.received", "error", err)
	}
	if m.bound, err = meter.Int64UpDownCounter("sockbridge.sockets.bound",
		metric.WithDescription("Sockets currently bound to a WebSocket"),
		metric.WithUnit("{socket}")); err != nil {
		log.Warnw("Failed to create metric", "name", "sockbridge.sockets.bound", "error", err)
	}
	if _, err = meter.Int64ObservableGauge("sockbridge.objects.live",
		metric.WithDescription("Live reference counted objects"),
		metric.WithUnit("{object}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(refcount.Instances.Count())
			return nil
		}),
	); err != nil {
		log.Warnw("Failed to create metric", "name", "sockbridge.objects.live", "error", err)
	}

	return m
}

func (m *metrics) add(counter metric.Int64Counter, n int) {
	if counter == nil || n == 0 {
		return
	}
	counter.Add(context.Background(), int64(n))
}

func (m *metrics) socketCreated() {
	m.add(m.created, 1)
	if m.bound != nil {
		m.bound.Add(context.Background(), 1)
	}
}

func (m *metrics) socketClosed() {
	m.add(m.closed, 1)
	if m.bound != nil {
		m.bound.Add(context.Background(), -1)
	}
}

func (m *metrics) opened()        { m.add(m.openedCount, 1) }
func (m *metrics) sent(n int)     { m.add(m.bytesSent, n) }
func (m *metrics) received(n int) { m.add(m.bytesReceived, n) }
