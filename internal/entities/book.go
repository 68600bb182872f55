package entities

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Book is a record in the local library.
type Book struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Title     string         `gorm:"index;size:512" json:"title"`
	Authors   string         `gorm:"index;size:512" json:"authors"` // " & " separated, first author is primary
	ISBN      string         `gorm:"index;size:20" json:"isbn,omitempty"`
	ISBN10    string         `gorm:"size:20" json:"isbn10,omitempty"`
	Fields    []BookField    `gorm:"foreignKey:BookID" json:"fields,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// AuthorList splits the Authors column into individual names.
func (b *Book) AuthorList() []string {
	if b.Authors == "" {
		return nil
	}
	parts := strings.Split(b.Authors, " & ")
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			authors = append(authors, p)
		}
	}
	return authors
}

// ISBNs returns the record's ISBNs in preference order (ISBN-13 first).
func (b *Book) ISBNs() []string {
	var isbns []string
	if b.ISBN != "" {
		isbns = append(isbns, b.ISBN)
	}
	if b.ISBN10 != "" && b.ISBN10 != b.ISBN {
		isbns = append(isbns, b.ISBN10)
	}
	return isbns
}

// BookField is a custom field value attached to a book. Which field plays
// which sync role (status, rating, progress...) is decided by configuration,
// not by the field name itself.
type BookField struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookID    uint      `gorm:"index:idx_book_field,unique" json:"book_id"`
	Name      string    `gorm:"index:idx_book_field,unique;size:100" json:"name"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BookField) TableName() string {
	return "book_fields"
}
