// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── books/           # Local book and custom field CRUD operations
//	├── links/           # Book-to-Hardcover link cache with field snapshots
//	└── syncruns/        # Persisted sync run history per direction
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	// Initialize database connection
//	db, err := database.NewDatabase("./app.db")
//
//	// Create domain-specific repositories
//	booksRepo := books.NewRepository(db.DB)
//	linksRepo := links.NewRepository(db.DB)
//
//	// Use repositories
//	book, err := booksRepo.GetBookByID(123)
//	link, err := linksRepo.Get(book.ID)
//
// # Interface Implementations
//
// Each sub-package implements specific interfaces:
//
//   - books.Repository: implements http.BookStore
//   - links.Repository: implements http.LinkStore
//   - syncruns.Repository: implements http.RunStore
//
// The syncer orchestrator uses the repositories directly since it owns the
// write path for links and run records.
//
// # Adding a New Domain
//
// To add a new domain (e.g., reading stats):
//
//  1. Create a new sub-package: internal/database/stats/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Implement the required interface
//  5. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
package database
