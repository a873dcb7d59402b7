package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/sarmap/internal/adapters/mapsurface"
	"github.com/samirrijal/sarmap/internal/adapters/postgres"
	"github.com/samirrijal/sarmap/internal/adapters/valkey"
	"github.com/samirrijal/sarmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Workspaces *usecases.WorkspaceService
	Scenes     *mapsurface.Hub
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
	// MaxUploadBytes bounds trace file uploads.
	MaxUploadBytes int
}
