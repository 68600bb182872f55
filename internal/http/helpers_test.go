package http

import (
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/hardcover-sync/internal/config"
	"github.com/mrlokans/hardcover-sync/internal/database"
	"github.com/mrlokans/hardcover-sync/internal/database/books"
	"github.com/mrlokans/hardcover-sync/internal/database/links"
	"github.com/mrlokans/hardcover-sync/internal/entities"
)

func setupTestRepos(t *testing.T) (*database.Database, *books.Repository, *links.Repository, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_http_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return db, books.NewRepository(db.DB), links.NewRepository(db.DB), cleanup
}

func seedBook(t *testing.T, repo *books.Repository, title string, fields map[string]string) *entities.Book {
	t.Helper()
	book := &entities.Book{Title: title, Authors: "Author"}
	require.NoError(t, repo.CreateBook(book))
	for name, value := range fields {
		require.NoError(t, repo.SetField(book.ID, name, value))
	}
	return book
}

func testSyncConfig() *config.Config {
	return &config.Config{
		Hardcover: config.Hardcover{ReviewMaxLen: 1000},
		Sync: config.Sync{
			Rating:   true,
			Progress: true,
			Dates:    true,
			Review:   true,
		},
		FieldMap: config.FieldMap{
			Status:          "status",
			Rating:          "rating",
			ProgressPages:   "progress_pages",
			ProgressPercent: "progress_percent",
			DateStarted:     "date_started",
			DateFinished:    "date_finished",
			Review:          "review",
			IsRead:          "is_read",
		},
	}
}
