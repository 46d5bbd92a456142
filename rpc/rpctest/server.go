// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpctest

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ServeWebsocket returns an http.Handler that upgrades every request to
// a websocket and answers the RPC requests sent over it with handler.
func ServeWebsocket(handler Handler) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var (
			writeMu sync.Mutex
			wg      sync.WaitGroup
		)
		defer wg.Wait()
		for {
			var req Request
			if err := ws.ReadJSON(&req); err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				reply := handler(req)
				if reply.Drop {
					return
				}
				writeMu.Lock()
				defer writeMu.Unlock()
				_ = ws.WriteJSON(wireReply{
					RequestId: req.RequestId,
					Response:  reply.Response,
					Error:     reply.Error,
					ErrorCode: reply.ErrorCode,
					ErrorInfo: reply.ErrorInfo,
				})
			}()
		}
	})
}
