package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
	"github.com/mrlokans/hardcover-sync/internal/syncer"
)

func newBody(b []byte) io.Reader { return bytes.NewReader(b) }

// listClientStub backs a real ListManager with in-memory state.
type listClientStub struct {
	lists       []hardcover.List
	memberships map[int][]hardcover.ListBookMembership // book id -> rows
	nextID      int
}

func newFakeHardcoverLists() *listClientStub {
	return &listClientStub{
		lists: []hardcover.List{
			{ID: 1, Name: "Favorites", Slug: "favorites"},
		},
		memberships: map[int][]hardcover.ListBookMembership{},
		nextID:      500,
	}
}

func (f *listClientStub) GetUserLists(_ context.Context) ([]hardcover.List, error) {
	return f.lists, nil
}

func (f *listClientStub) GetBookListMemberships(_ context.Context, bookID int) ([]hardcover.ListBookMembership, error) {
	return f.memberships[bookID], nil
}

func (f *listClientStub) AddBookToList(_ context.Context, listID, bookID int) (int, error) {
	f.nextID++
	for _, l := range f.lists {
		if l.ID == listID {
			f.memberships[bookID] = append(f.memberships[bookID], hardcover.ListBookMembership{
				ListBookID: f.nextID, List: l,
			})
		}
	}
	return f.nextID, nil
}

func (f *listClientStub) RemoveBookFromList(_ context.Context, listBookID int) error {
	for bookID, rows := range f.memberships {
		for i, row := range rows {
			if row.ListBookID == listBookID {
				f.memberships[bookID] = append(rows[:i], rows[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func listsRouter(manager *syncer.ListManager, linkRepo LinkStore) *gin.Engine {
	controller := NewListsController(manager, linkRepo)
	router := gin.New()
	router.GET("/api/lists", controller.GetUserLists)
	router.POST("/api/books/:id/lists", controller.AddBookToList)
	router.DELETE("/api/books/:id/lists/:list", controller.RemoveBookFromList)
	return router
}

func TestListsController_Membership(t *testing.T) {
	_, bookRepo, linkRepo, cleanup := setupTestRepos(t)
	defer cleanup()

	book := seedBook(t, bookRepo, "Dune", nil)
	unlinked := seedBook(t, bookRepo, "Hyperion", nil)
	require.NoError(t, linkRepo.Put(&entities.Link{BookID: book.ID, HardcoverBookID: 100}))

	client := newFakeHardcoverLists()
	router := listsRouter(syncer.NewListManager(client), linkRepo)

	t.Run("lists the user's lists", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/lists", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Favorites")
	})

	t.Run("adds a linked book by list name", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := []byte(`{"list": "favorites"}`)
		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/books/%d/lists", book.ID), newBody(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"added": true`)
	})

	t.Run("re-adding reports added false", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := []byte(`{"list": "favorites"}`)
		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/books/%d/lists", book.ID), newBody(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"added": false`)
	})

	t.Run("unknown list 404s", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := []byte(`{"list": "nonexistent"}`)
		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/books/%d/lists", book.ID), newBody(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unlinked book conflicts", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := []byte(`{"list": "favorites"}`)
		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/books/%d/lists", unlinked.ID), newBody(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("removes the book from the list", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", fmt.Sprintf("/api/books/%d/lists/favorites", book.ID), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"removed": true`)
	})
}
