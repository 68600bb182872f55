// Package books provides database operations for the local library.
//
// A book carries a set of named custom fields; the sync engine maps field
// names to sync roles through configuration.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetBookByID(123)
package books

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/hardcover-sync/internal/entities"
)

// Repository handles all local library database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetBookByID retrieves a book with its custom fields.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("Fields").First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBooksByIDs retrieves a selection of books with their custom fields,
// preserving only books that exist. Missing ids are not an error.
func (r *Repository) GetBooksByIDs(ids []uint) ([]entities.Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var books []entities.Book
	err := r.db.Preload("Fields").Where("id IN ?", ids).Order("id ASC").Find(&books).Error
	return books, err
}

// GetAllBooks retrieves the whole library with custom fields.
func (r *Repository) GetAllBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Preload("Fields").Order("id ASC").Find(&books).Error
	return books, err
}

// SearchBooks retrieves books whose title or authors match the query.
func (r *Repository) SearchBooks(query string) ([]entities.Book, error) {
	var books []entities.Book
	pattern := "%" + query + "%"
	err := r.db.Preload("Fields").
		Where("LOWER(title) LIKE LOWER(?) OR LOWER(authors) LIKE LOWER(?)", pattern, pattern).
		Order("id ASC").Find(&books).Error
	return books, err
}

// FindBookByISBN retrieves a book by either of its ISBN columns.
func (r *Repository) FindBookByISBN(isbn string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("Fields").Where("isbn = ? OR isbn10 = ?", isbn, isbn).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// CreateBook inserts a new library record.
func (r *Repository) CreateBook(book *entities.Book) error {
	return r.db.Create(book).Error
}

// UpdateBook saves changes to a library record.
func (r *Repository) UpdateBook(book *entities.Book) error {
	return r.db.Save(book).Error
}

// DeleteBook soft-deletes a library record and removes its custom fields.
func (r *Repository) DeleteBook(id uint) error {
	if err := r.db.Where("book_id = ?", id).Delete(&entities.BookField{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&entities.Book{}, id).Error
}

// GetField returns a custom field value. found is false when the field was
// never set for the book.
func (r *Repository) GetField(bookID uint, name string) (value string, found bool, err error) {
	var field entities.BookField
	err = r.db.Where("book_id = ? AND name = ?", bookID, name).First(&field).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return field.Value, true, nil
}

// SetField upserts a custom field value.
func (r *Repository) SetField(bookID uint, name, value string) error {
	field := entities.BookField{BookID: bookID, Name: name, Value: value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&field).Error
}

// DeleteField removes a custom field value. Deleting an absent field is a
// no-op.
func (r *Repository) DeleteField(bookID uint, name string) error {
	return r.db.Where("book_id = ? AND name = ?", bookID, name).
		Delete(&entities.BookField{}).Error
}

// FieldMap returns all custom fields of a book as a name -> value map.
func (r *Repository) FieldMap(bookID uint) (map[string]string, error) {
	var fields []entities.BookField
	if err := r.db.Where("book_id = ?", bookID).Find(&fields).Error; err != nil {
		return nil, err
	}
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m, nil
}
