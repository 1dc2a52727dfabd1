// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// DialerOptions contains configuration of the built-in socket factories.
type DialerOptions struct {
	HandshakeTimeout time.Duration `json:"handshake-timeout" mapstructure:"handshake-timeout"`
	ReadBufferSize   int           `json:"read-buffer-size"  mapstructure:"read-buffer-size"`
	WriteBufferSize  int           `json:"write-buffer-size" mapstructure:"write-buffer-size"`
	Compression      bool          `json:"compression"       mapstructure:"compression"`
	MaxRetries       int           `json:"max-retries"       mapstructure:"max-retries"`
	ReceiveWindow    int64         `json:"receive-window"    mapstructure:"receive-window"`
	Heartbeat        time.Duration `json:"heartbeat"         mapstructure:"heartbeat"`
	CloseTimeout     time.Duration `json:"close-timeout"     mapstructure:"close-timeout"`
}

// NewDialerOptions returns the default dialer options.
func NewDialerOptions() *DialerOptions {
	return &DialerOptions{
		HandshakeTimeout: 15 * time.Second,
		ReadBufferSize:   32 * 1024,
		WriteBufferSize:  32 * 1024,
		Compression:      false,
		MaxRetries:       2,
		ReceiveWindow:    128 * 1024,
		Heartbeat:        0,
		CloseTimeout:     5 * time.Second,
	}
}

// Validate checks the options.
func (o *DialerOptions) Validate() []error {
	var errs []error
	if o.HandshakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--socket.handshake-timeout must be positive"))
	}
	if o.ReadBufferSize < 0 || o.WriteBufferSize < 0 {
		errs = append(errs, fmt.Errorf("--socket.read-buffer-size and --socket.write-buffer-size cannot be negative"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("--socket.max-retries %v cannot be negative", o.MaxRetries))
	}
	if o.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("--socket.heartbeat cannot be negative"))
	}
	if o.CloseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--socket.close-timeout must be positive"))
	}

	return errs
}

// AddFlags adds flags related to the socket dialer to the specified FlagSet.
func (o *DialerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&o.HandshakeTimeout, "socket.handshake-timeout", o.HandshakeTimeout,
		"Timeout of the WebSocket opening handshake.")
	fs.IntVar(&o.ReadBufferSize, "socket.read-buffer-size", o.ReadBufferSize, "I/O read buffer size in bytes.")
	fs.IntVar(&o.WriteBufferSize, "socket.write-buffer-size", o.WriteBufferSize, "I/O write buffer size in bytes.")
	fs.BoolVar(&o.Compression, "socket.compression", o.Compression, "Negotiate per message compression.")
	fs.IntVar(&o.MaxRetries, "socket.max-retries", o.MaxRetries,
		"How many times a failed dial is retried with exponential backoff.")
	fs.Int64Var(&o.ReceiveWindow, "socket.receive-window", o.ReceiveWindow,
		"Unacknowledged received bytes at which reading pauses, 0 means unlimited.")
	fs.DurationVar(&o.Heartbeat, "socket.heartbeat", o.Heartbeat,
		"Ping interval, 0 disables pings unless the connection options set one.")
	fs.DurationVar(&o.CloseTimeout, "socket.close-timeout", o.CloseTimeout,
		"How long to wait for the peer to answer a close frame.")
}
