// Package handler provides the HTTP handlers and routing setup for the relay server.
package handler

import (
	"dmrelay/internal/configs"
	"dmrelay/internal/relay"
)

// AppDeps bundles the shared dependencies injected into handlers.
type AppDeps struct {
	Config *configs.AppConfig
	Hub    *relay.Hub
}
