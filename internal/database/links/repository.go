// Package links provides database operations for the book link cache.
//
// A link binds a local book to a Hardcover book and carries the snapshot of
// field values from the last successful apply. Links are keyed by local book
// id; writes follow last-write-wins.
package links

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/hardcover-sync/internal/entities"
)

// Repository handles all link cache database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new links repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the link for a local book, or nil when the book is unlinked.
func (r *Repository) Get(bookID uint) (*entities.Link, error) {
	var link entities.Link
	err := r.db.Where("book_id = ?", bookID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetAll returns every link, ordered by local book id.
func (r *Repository) GetAll() ([]entities.Link, error) {
	var links []entities.Link
	err := r.db.Order("book_id ASC").Find(&links).Error
	return links, err
}

// GetByHardcoverBookID returns all links pointing at a Hardcover book.
// Several local records may legitimately link to the same remote book
// (different editions, duplicate library entries).
func (r *Repository) GetByHardcoverBookID(hardcoverBookID int) ([]entities.Link, error) {
	var links []entities.Link
	err := r.db.Where("hardcover_book_id = ?", hardcoverBookID).Order("book_id ASC").Find(&links).Error
	return links, err
}

// Put creates or replaces the link for link.BookID. The existing snapshot is
// discarded when the link target changes.
func (r *Repository) Put(link *entities.Link) error {
	var existing entities.Link
	result := r.db.Where("book_id = ?", link.BookID).First(&existing)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return r.db.Create(link).Error
	}
	if result.Error != nil {
		return result.Error
	}

	link.ID = existing.ID
	link.CreatedAt = existing.CreatedAt
	if existing.HardcoverBookID == link.HardcoverBookID && link.Snapshot == "" {
		// Relink to the same book keeps the snapshot.
		link.Snapshot = existing.Snapshot
	}
	return r.db.Save(link).Error
}

// Remove deletes the link for a local book. Removing an absent link is a
// no-op.
func (r *Repository) Remove(bookID uint) error {
	return r.db.Where("book_id = ?", bookID).Delete(&entities.Link{}).Error
}

// UpdateSnapshot replaces the stored snapshot for a linked book. The caller
// passes the full post-apply field values; an empty map clears the snapshot.
func (r *Repository) UpdateSnapshot(bookID uint, values map[string]string) error {
	link, err := r.Get(bookID)
	if err != nil {
		return err
	}
	if link == nil {
		return gorm.ErrRecordNotFound
	}
	link.SetSnapshot(values)
	return r.db.Model(&entities.Link{}).Where("book_id = ?", bookID).
		Updates(map[string]any{"snapshot": link.Snapshot, "updated_at": time.Now()}).Error
}

// Count returns the number of linked books.
func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Link{}).Count(&count).Error
	return count, err
}
