// Package http exposes the library, link cache, and sync runs over a JSON
// API.
package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.TokenConfigured, cfg.Version)
	booksController := NewBooksController(cfg.BookStore)
	linksController := NewLinksController(cfg.LinkStore, cfg.BookStore, cfg.Resolver)
	syncController := NewSyncController(cfg.SyncRunner, cfg.RunStore, cfg.TaskClient)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Books API endpoints
	router.GET("/api/books", booksController.GetAllBooks)
	router.GET("/api/books/search", booksController.SearchBooks)
	router.GET("/api/books/:id", booksController.GetBook)
	router.GET("/api/books/:id/fields", booksController.GetBookFields)

	// Link cache endpoints
	router.GET("/api/links", linksController.GetAllLinks)
	router.GET("/api/links/stats", linksController.GetLinkStats)
	router.GET("/api/books/:id/link", linksController.GetLink)
	router.PUT("/api/books/:id/link", linksController.CreateLink)
	router.DELETE("/api/books/:id/link", linksController.DeleteLink)
	router.POST("/api/books/:id/match", linksController.MatchBook)

	// Sync run endpoints
	router.POST("/api/sync/run", syncController.RunSync)
	router.POST("/api/sync/preview", syncController.StartPreview)
	router.GET("/api/sync/preview", syncController.GetPreview)
	router.POST("/api/sync/accept", syncController.Accept)
	router.POST("/api/sync/resolve", syncController.ResolveChoice)
	router.POST("/api/sync/skip", syncController.Skip)
	router.POST("/api/sync/apply", syncController.Apply)
	router.POST("/api/sync/cancel", syncController.Cancel)
	router.GET("/api/sync/status", syncController.GetStatus)

	// List membership endpoints (need a configured API token)
	if cfg.Lists != nil {
		listsController := NewListsController(cfg.Lists, cfg.LinkStore)
		router.GET("/api/lists", listsController.GetUserLists)
		router.POST("/api/books/:id/lists", listsController.AddBookToList)
		router.DELETE("/api/books/:id/lists/:list", listsController.RemoveBookFromList)
	}

	return router
}
