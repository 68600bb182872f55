package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func booksRouter(controller *BooksController) *gin.Engine {
	router := gin.New()
	router.GET("/api/books", controller.GetAllBooks)
	router.GET("/api/books/search", controller.SearchBooks)
	router.GET("/api/books/:id", controller.GetBook)
	router.GET("/api/books/:id/fields", controller.GetBookFields)
	return router
}

func TestBooksController_GetAllBooks(t *testing.T) {
	_, bookRepo, _, cleanup := setupTestRepos(t)
	defer cleanup()

	seedBook(t, bookRepo, "Dune", nil)
	seedBook(t, bookRepo, "Hyperion", nil)

	router := booksRouter(NewBooksController(bookRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/books", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Count)
}

func TestBooksController_GetBook(t *testing.T) {
	_, bookRepo, _, cleanup := setupTestRepos(t)
	defer cleanup()

	book := seedBook(t, bookRepo, "Dune", map[string]string{"status": "Read"})
	router := booksRouter(NewBooksController(bookRepo))

	t.Run("returns the book with its fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", fmt.Sprintf("/api/books/%d", book.ID), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Dune")
		assert.Contains(t, w.Body.String(), "status")
	})

	t.Run("rejects a non-numeric id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/books/dune", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("404s on an unknown book", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/books/9999", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBooksController_SearchBooks(t *testing.T) {
	_, bookRepo, _, cleanup := setupTestRepos(t)
	defer cleanup()

	seedBook(t, bookRepo, "Dune", nil)
	seedBook(t, bookRepo, "Dune Messiah", nil)
	seedBook(t, bookRepo, "Hyperion", nil)

	router := booksRouter(NewBooksController(bookRepo))

	t.Run("matches by title substring", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/books/search?q=dune", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2, response.Count)
	})

	t.Run("requires a query", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/books/search", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBooksController_GetBookFields(t *testing.T) {
	_, bookRepo, _, cleanup := setupTestRepos(t)
	defer cleanup()

	book := seedBook(t, bookRepo, "Dune", map[string]string{
		"status": "Currently Reading",
		"rating": "9",
	})
	router := booksRouter(NewBooksController(bookRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/books/%d/fields", book.ID), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Currently Reading", response.Fields["status"])
	assert.Equal(t, "9", response.Fields["rating"])
}
