// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package websocket

import "fmt"

// WebSocket close codes, see RFC 6455 section 7.4.
const (
	CloseNormal           = 1000
	CloseGoingAway        = 1001
	CloseProtocolError    = 1002
	CloseDataError        = 1003
	CloseNoCode           = 1005
	CloseAbnormal         = 1006
	CloseBadMessageFormat = 1007
	ClosePolicyError      = 1008
	CloseMessageTooBig    = 1009
	CloseMissingExtension = 1010
	CloseCantFulfill      = 1011
	CloseTLSFailure       = 1015
)

// CloseReason tells how the Code of a CloseStatus is to be interpreted.
type CloseReason int

const (
	// WebSocketStatus means Code is a WebSocket close code.
	WebSocketStatus CloseReason = iota
	// POSIXError means Code is an errno value.
	POSIXError
	// NetworkError means Code is a network level failure, like a refused dial
	// or an HTTP status returned by the handshake.
	NetworkError
	// Exception means the connection failed on an internal error.
	Exception
	// UnknownError is used when nothing better is known.
	UnknownError
)

func (r CloseReason) String() string {
	switch r {
	case WebSocketStatus:
		return "websocket"
	case POSIXError:
		return "posix"
	case NetworkError:
		return "network"
	case Exception:
		return "exception"
	default:
		return "unknown"
	}
}

// CloseStatus describes why a connection closed. Transport failures are
// reported this way, never as returned errors.
type CloseStatus struct {
	Reason  CloseReason
	Code    int
	Message string
}

// NormalClose returns the status of a clean close handshake.
func NormalClose(message string) CloseStatus {
	return CloseStatus{Reason: WebSocketStatus, Code: CloseNormal, Message: message}
}

// IsNormal reports whether the connection closed cleanly.
func (s CloseStatus) IsNormal() bool {
	return s.Reason == WebSocketStatus && (s.Code == CloseNormal || s.Code == CloseGoingAway)
}

func (s CloseStatus) String() string {
	if s.Message == "" {
		return fmt.Sprintf("%s/%d", s.Reason, s.Code)
	}

	return fmt.Sprintf("%s/%d %q", s.Reason, s.Code, s.Message)
}
