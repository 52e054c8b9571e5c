/*
Package handler provides the HTTP handlers and routing setup for the relay server.

This file contains the HandleWebSocket function, responsible for rate limiting,
upgrading the HTTP connection to WebSocket, and starting the client pumps. The
upgrade carries no identity; binding happens later via the identify frame on
the socket.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"dmrelay/internal/pkg/errs"
	"dmrelay/internal/pkg/limiter"
	"dmrelay/internal/pkg/logx"
	"dmrelay/internal/pkg/resp"
	"dmrelay/internal/relay"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r.RemoteAddr)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := relay.NewClient(deps.Hub, conn)

		go client.WritePump()

		deps.Hub.RegisterClient(client)

		logx.Info("WebSocket connection established", "remote_addr", conn.RemoteAddr().String())

		client.ReadPump()
	}
}
