// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package websocket

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/wangtaoking1/sockbridge/errors"
)

// ErrInvalidAddress is returned when a URL can not be parsed into an Address.
var ErrInvalidAddress = errors.New("invalid websocket address")

// Address is the immutable location of a remote WebSocket endpoint.
type Address struct {
	scheme   string
	hostname string
	port     uint16
	path     string
	database string
}

// NewAddress returns an Address for the given components. The scheme is kept
// as given and compared case-insensitively.
func NewAddress(scheme, hostname string, port uint16, path string) Address {
	return Address{
		scheme:   scheme,
		hostname: hostname,
		port:     port,
		path:     path,
	}
}

// ParseAddress parses a ws, wss, blip or blips URL.
func ParseAddress(raw string) (Address, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Address{}, errors.WithMessagef(ErrInvalidAddress, "%s: %v", raw, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return Address{}, errors.WithMessagef(ErrInvalidAddress, "%s: scheme and host are required", raw)
	}

	var port uint16
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Address{}, errors.WithMessagef(ErrInvalidAddress, "%s: bad port %q", raw, p)
		}
		port = uint16(n)
	}

	return NewAddress(u.Scheme, u.Hostname(), port, u.EscapedPath()), nil
}

// WithDatabaseName returns a copy of a whose database name is name.
func (a Address) WithDatabaseName(name string) Address {
	a.database = name
	return a
}

// WithPath returns a copy of a whose path is path.
func (a Address) WithPath(path string) Address {
	a.path = path
	return a
}

func (a Address) Scheme() string   { return a.scheme }
func (a Address) Hostname() string { return a.hostname }
func (a Address) Port() uint16     { return a.port }
func (a Address) Path() string     { return a.path }

// DatabaseName returns the explicit database name, falling back to the first
// segment of the path.
func (a Address) DatabaseName() string {
	if a.database != "" {
		return a.database
	}
	segment, _, _ := strings.Cut(strings.TrimPrefix(a.path, "/"), "/")
	if name, err := url.PathUnescape(segment); err == nil {
		return name
	}

	return segment
}

// HasDatabaseName reports whether the database name was set explicitly.
func (a Address) HasDatabaseName() bool {
	return a.database != ""
}

// IsSecure reports whether the scheme implies TLS.
func (a Address) IsSecure() bool {
	switch strings.ToLower(a.scheme) {
	case "wss", "blips", "https":
		return true
	default:
		return false
	}
}

// URL returns the ws:// or wss:// URL to dial.
func (a Address) URL() string {
	scheme := "ws"
	if a.IsSecure() {
		scheme = "wss"
	}
	host := a.hostname
	if a.port != 0 {
		host = net.JoinHostPort(a.hostname, strconv.Itoa(int(a.port)))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u := url.URL{Scheme: scheme, Host: host}
	if unescaped, err := url.PathUnescape(a.path); err == nil {
		u.Path, u.RawPath = unescaped, a.path
	} else {
		u.Path = a.path
	}

	return u.String()
}

func (a Address) String() string {
	if a.database == "" {
		return a.URL()
	}

	return fmt.Sprintf("%s (db=%s)", a.URL(), a.database)
}
