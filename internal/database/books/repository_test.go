package books

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/hardcover-sync/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := "./test_books_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Book{}, &entities.BookField{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func TestRepository_CreateAndGetBook(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{
		Title:   "Dune",
		Authors: "Frank Herbert",
		ISBN:    "9780441013593",
	}
	require.NoError(t, repo.CreateBook(book))
	require.NotZero(t, book.ID)

	got, err := repo.GetBookByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, []string{"Frank Herbert"}, got.AuthorList())
}

func TestRepository_GetBooksByIDs(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	a := &entities.Book{Title: "A"}
	b := &entities.Book{Title: "B"}
	require.NoError(t, repo.CreateBook(a))
	require.NoError(t, repo.CreateBook(b))

	// Missing ids are silently skipped.
	books, err := repo.GetBooksByIDs([]uint{a.ID, b.ID, 999})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "A", books[0].Title)

	books, err = repo.GetBooksByIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestRepository_FindBookByISBN(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Dune", ISBN: "9780441013593", ISBN10: "0441013597"}
	require.NoError(t, repo.CreateBook(book))

	byISBN13, err := repo.FindBookByISBN("9780441013593")
	require.NoError(t, err)
	assert.Equal(t, book.ID, byISBN13.ID)

	byISBN10, err := repo.FindBookByISBN("0441013597")
	require.NoError(t, err)
	assert.Equal(t, book.ID, byISBN10.ID)

	_, err = repo.FindBookByISBN("0000000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_SearchBooks(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.CreateBook(&entities.Book{Title: "Hyperion", Authors: "Dan Simmons"}))
	require.NoError(t, repo.CreateBook(&entities.Book{Title: "Dune", Authors: "Frank Herbert"}))

	byTitle, err := repo.SearchBooks("hype")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Hyperion", byTitle[0].Title)

	byAuthor, err := repo.SearchBooks("herbert")
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "Dune", byAuthor[0].Title)
}

func TestRepository_SetField_Upsert(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Dune"}
	require.NoError(t, repo.CreateBook(book))

	require.NoError(t, repo.SetField(book.ID, "status", "Currently Reading"))
	require.NoError(t, repo.SetField(book.ID, "status", "Read"))

	value, found, err := repo.GetField(book.ID, "status")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Read", value)

	// Only one row per (book, name) pair survives the upsert.
	fields, err := repo.FieldMap(book.ID)
	require.NoError(t, err)
	assert.Len(t, fields, 1)
}

func TestRepository_GetField_NotSet(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Dune"}
	require.NoError(t, repo.CreateBook(book))

	_, found, err := repo.GetField(book.ID, "rating")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_DeleteField(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Dune"}
	require.NoError(t, repo.CreateBook(book))
	require.NoError(t, repo.SetField(book.ID, "review", "great"))

	require.NoError(t, repo.DeleteField(book.ID, "review"))
	_, found, err := repo.GetField(book.ID, "review")
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting twice is fine.
	require.NoError(t, repo.DeleteField(book.ID, "review"))
}

func TestRepository_DeleteBook_RemovesFields(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	book := &entities.Book{Title: "Dune"}
	require.NoError(t, repo.CreateBook(book))
	require.NoError(t, repo.SetField(book.ID, "status", "Read"))

	require.NoError(t, repo.DeleteBook(book.ID))

	_, err := repo.GetBookByID(book.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	fields, err := repo.FieldMap(book.ID)
	require.NoError(t, err)
	assert.Empty(t, fields)
}
