// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package middleware holds the named gin middlewares the server can install.
package middleware

import (
	"sort"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wangtaoking1/sockbridge/log"
)

// RequestIDHeader carries the id of a request.
const RequestIDHeader = "X-Request-ID"

var (
	middlewares = map[string]gin.HandlerFunc{}
	mtx         sync.RWMutex
)

func init() {
	Register("requestid", RequestID())
	Register("cors", Cors())
}

// Register register a middleware.
func Register(name string, middleware gin.HandlerFunc) {
	mtx.Lock()
	defer mtx.Unlock()

	middlewares[name] = middleware
}

// Get returns the specific name middleware.
func Get(name string) gin.HandlerFunc {
	mtx.RLock()
	defer mtx.RUnlock()

	return middlewares[name]
}

// Names returns the registered middleware names, sorted.
func Names() []string {
	mtx.RLock()
	defer mtx.RUnlock()

	names := make([]string, 0, len(middlewares))
	for name := range middlewares {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// RequestID tags every request with an id, taken from the X-Request-ID header
// or generated, and puts a logger carrying it on the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(log.WithContext(c.Request.Context(), "request_id", id))

		c.Next()
	}
}

// Cors allows cross origin requests, so browser tools can read the
// diagnostics endpoints.
func Cors() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = append(config.AllowHeaders, RequestIDHeader)
	config.ExposeHeaders = []string{RequestIDHeader}

	return cors.New(config)
}
