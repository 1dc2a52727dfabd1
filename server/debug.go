// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/socket"
)

const (
	debugSocketsPath = "/debug/sockets"
)

type socketList struct {
	Count   int                 `json:"count"`
	Sockets []socket.SocketInfo `json:"sockets"`
}

func (s *apiServer) addDebugRouter() {
	s.GET(debugSocketsPath, func(c *gin.Context) {
		infos := s.sockets.Describe()
		if infos == nil {
			infos = []socket.SocketInfo{}
		}
		data, err := json.Marshal(socketList{Count: len(infos), Sockets: infos})
		if err != nil {
			log.From(c.Request.Context()).Errorw("Encode socket list failed", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)

			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	})
}
