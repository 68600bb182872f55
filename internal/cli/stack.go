package cli

import (
	"fmt"
	"path/filepath"

	"github.com/mrlokans/hardcover-sync/internal/config"
	"github.com/mrlokans/hardcover-sync/internal/database"
	"github.com/mrlokans/hardcover-sync/internal/database/books"
	"github.com/mrlokans/hardcover-sync/internal/database/links"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
)

// stack bundles the pieces every command needs: configuration, the local
// database with its repositories, and the Hardcover client.
type stack struct {
	cfg    *config.Config
	db     *database.Database
	client *hardcover.Client
	books  *books.Repository
	links  *links.Repository
}

// openStack builds the command environment. An empty dbPath falls back to the
// configured database path.
func openStack(dbPath string, dryRun bool) (*stack, error) {
	cfg := config.NewConfig()

	if dbPath != "" {
		abs, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for database: %w", err)
		}
		cfg.Database.Path = abs
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client := hardcover.NewClient(hardcover.Config{
		APIURL:            cfg.Hardcover.APIURL,
		Token:             cfg.Hardcover.Token,
		Timeout:           cfg.Hardcover.Timeout,
		MaxRetries:        cfg.Hardcover.MaxRetries,
		RequestsPerMinute: cfg.Hardcover.RequestsPerMinute,
		DryRun:            dryRun,
	})

	return &stack{
		cfg:    cfg,
		db:     db,
		client: client,
		books:  books.NewRepository(db.DB),
		links:  links.NewRepository(db.DB),
	}, nil
}

// requireToken guards commands that talk to the API.
func (s *stack) requireToken() error {
	if s.cfg.Hardcover.Token == "" {
		return fmt.Errorf("HARDCOVER_TOKEN is not set")
	}
	return nil
}

func (s *stack) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
