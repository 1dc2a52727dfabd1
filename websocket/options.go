// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package websocket

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
)

// Well-known protocol option keys.
const (
	// OptionExtraHeaders holds a map of extra HTTP headers for the handshake.
	OptionExtraHeaders = "headers"
	// OptionCookies holds a cookie header value sent with the handshake.
	OptionCookies = "cookies"
	// OptionProtocols holds the comma separated WebSocket sub-protocols.
	OptionProtocols = "WS-Protocols"
	// OptionHeartbeat holds the ping interval in seconds.
	OptionHeartbeat = "heartbeat"
)

// Options is the arbitrary key/value protocol configuration attached to a
// WebSocket, like sub-protocols, auth headers or proxy settings.
type Options map[string]any

// Clone returns a shallow copy of o.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}

	return out
}

// String returns the option under key if it is a string.
func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Int returns the option under key if it is numeric.
func (o Options) Int(key string) (int64, bool) {
	switch v := o[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint16:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Protocols returns the requested sub-protocols.
func (o Options) Protocols() []string {
	switch v := o[OptionProtocols].(type) {
	case string:
		if v == "" {
			return nil
		}
		return splitList(v)
	case []string:
		return v
	default:
		return nil
	}
}

// Header returns the handshake headers, including cookies.
func (o Options) Header() http.Header {
	header := http.Header{}
	switch v := o[OptionExtraHeaders].(type) {
	case map[string]string:
		for k, val := range v {
			header.Set(k, val)
		}
	case map[string]any:
		for k, val := range v {
			header.Set(k, fmt.Sprint(val))
		}
	case http.Header:
		for k, vals := range v {
			for _, val := range vals {
				header.Add(k, val)
			}
		}
	}
	if cookies := o.String(OptionCookies); cookies != "" {
		header.Set("Cookie", cookies)
	}

	return header
}

// Heartbeat returns the ping interval, zero when not set.
func (o Options) Heartbeat() time.Duration {
	secs, ok := o.Int(OptionHeartbeat)
	if !ok || secs <= 0 {
		return 0
	}

	return time.Duration(secs) * time.Second
}

// MarshalString encodes o as json, for logs.
func (o Options) MarshalString() string {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(o))
	}

	return string(data)
}

// SchedulerOptions contains configuration of the actor scheduler.
type SchedulerOptions struct {
	PoolSize       int           `json:"pool-size"       mapstructure:"pool-size"`
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
}

// NewSchedulerOptions returns the default scheduler options.
func NewSchedulerOptions() *SchedulerOptions {
	return &SchedulerOptions{
		PoolSize:       256,
		ExpiryDuration: 10 * time.Second,
	}
}

func (o *SchedulerOptions) Validate() []error {
	var errs []error
	if o.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("--websocket.pool-size %v must be positive", o.PoolSize))
	}
	if o.ExpiryDuration < 0 {
		errs = append(errs, fmt.Errorf("--websocket.expiry-duration cannot be negative"))
	}
	return errs
}

func (o *SchedulerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.PoolSize, "websocket.pool-size", o.PoolSize, "The max number of goroutines running websocket actors")
	fs.DurationVar(&o.ExpiryDuration, "websocket.expiry-duration", o.ExpiryDuration, "How long an idle actor goroutine is kept")
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
