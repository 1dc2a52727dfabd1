// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// sockbridge serves a WebSocket echo and diagnostics endpoint, and dials
// WebSocket peers through the pluggable socket factories.
package main

import (
	"github.com/wangtaoking1/sockbridge/app"
)

func main() {
	application := app.NewApp("sockbridge",
		"sockbridge",
		app.WithDescription("sockbridge bridges WebSockets to pluggable socket implementations."),
		app.WithDefaultValidArgs(),
		app.WithNoConfig(),
		app.WithCommands(newServeCommand(), newDialCommand()),
	)

	application.Run()
}
