package http

import (
	"github.com/mrlokans/hardcover-sync/internal/database"
	"github.com/mrlokans/hardcover-sync/internal/syncer"
	"github.com/mrlokans/hardcover-sync/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces the long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database

	// Library access
	BookStore BookStore

	// Link cache access
	LinkStore LinkStore
	Resolver  Resolver

	// Sync run control
	SyncRunner SyncRunner
	RunStore   RunStore

	// List membership (optional, needs a configured API token)
	Lists *syncer.ListManager

	// Task queue client (optional)
	TaskClient *tasks.Client

	// TokenConfigured reports whether a Hardcover API token is set; surfaced
	// by the health endpoint.
	TokenConfigured bool

	// Application info
	Version string
}
