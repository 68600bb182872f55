package hardcover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI routes incoming GraphQL documents to canned responses by operation
// name.
type fakeAPI struct {
	t         *testing.T
	responses map[string]string
	requests  atomic.Int64
	mutations atomic.Int64
}

func (f *fakeAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)

		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req graphQLRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

		if strings.Contains(req.Query, "mutation") {
			f.mutations.Add(1)
		}

		for op, resp := range f.responses {
			if strings.Contains(req.Query, op) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(resp))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": [{"message": "unexpected operation"}]}`))
	}
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *httptest.Server) {
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		APIURL:            srv.URL,
		Token:             "test-token",
		MaxRetries:        2,
		RequestsPerMinute: 100000, // do not pace tests
	})
	return client, srv
}

const meResponse = `{"data": {"me": {"id": 42, "username": "reader", "name": "A Reader", "books_count": 7}}}`

func TestMe(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{"query Me": meResponse}}
	client, _ := newTestClient(t, api)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, user.ID)
	assert.Equal(t, "reader", user.Username)

	// Identity is cached: userID must not re-hit the API.
	before := api.requests.Load()
	id, err := client.userID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, before, api.requests.Load())
}

func TestMeListShape(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{
		"query Me": `{"data": {"me": [{"id": 42, "username": "reader"}]}}`,
	}}
	client, _ := newTestClient(t, api)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, user.ID)
}

func TestMeInvalidToken(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{"query Me": meResponse}}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := NewClient(Config{APIURL: srv.URL, Token: "wrong", RequestsPerMinute: 100000})

	_, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}

func TestGraphQLUnauthorizedError(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{
		"query Me": `{"errors": [{"message": "Could not verify JWT", "extensions": {"code": "invalid-jwt"}}]}`,
	}}
	client, _ := newTestClient(t, api)

	_, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	// Auth failures must not be retried.
	assert.Equal(t, int64(1), api.requests.Load())
}

func TestRateLimitRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(meResponse))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{APIURL: srv.URL, Token: "test-token", MaxRetries: 2, RequestsPerMinute: 100000})

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, user.ID)
	assert.Equal(t, int64(2), calls.Load())
}

func TestRateLimitExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{APIURL: srv.URL, Token: "test-token", MaxRetries: 1, RequestsPerMinute: 100000})

	_, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int64(2), calls.Load()) // initial + 1 retry
}

func TestFindBooksByISBN(t *testing.T) {
	// Two editions of the same book plus one edition of another: the result
	// must be de-duplicated by book id.
	api := &fakeAPI{t: t, responses: map[string]string{
		"query BookByISBN": `{"data": {"editions": [
			{"id": 10, "isbn_13": "9780000000001", "pages": 300, "book": {
				"id": 1, "title": "Dune", "slug": "dune",
				"contributions": [{"author": {"id": 5, "name": "Frank Herbert"}}]}},
			{"id": 11, "isbn_13": "9780000000001", "pages": 320, "book": {
				"id": 1, "title": "Dune", "slug": "dune",
				"contributions": [{"author": {"id": 5, "name": "Frank Herbert"}}]}},
			{"id": 12, "isbn_13": "9780000000001", "pages": 250, "book": {
				"id": 2, "title": "Dune (Annotated)", "slug": "dune-annotated",
				"contributions": []}}
		]}}`,
	}}
	client, _ := newTestClient(t, api)

	books, err := client.FindBooksByISBN(context.Background(), "978-0-00-000000-1")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "dune", books[0].Slug)
	assert.Equal(t, []string{"Frank Herbert"}, books[0].AuthorNames())
	assert.Equal(t, 300, books[0].TotalPages())
	assert.Equal(t, "dune-annotated", books[1].Slug)
}

func TestFindBooksByISBNInvalidISBN(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{}}
	client, _ := newTestClient(t, api)

	books, err := client.FindBooksByISBN(context.Background(), "not-an-isbn")
	require.NoError(t, err)
	assert.Empty(t, books)
	assert.Equal(t, int64(0), api.requests.Load())
}

func TestSearchBooks(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{
		"query SearchBooks": `{"data": {"search": {"results": {"hits": [
			{"document": {"id": "7", "title": "Hyperion", "slug": "hyperion",
				"author_names": ["Dan Simmons"], "isbns": ["9780553283686"],
				"release_year": 1989, "pages": 482}}
		]}}}}`,
	}}
	client, _ := newTestClient(t, api)

	books, err := client.SearchBooks(context.Background(), "hyperion simmons")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 7, books[0].ID)
	assert.Equal(t, "hyperion", books[0].Slug)
	assert.Equal(t, []string{"Dan Simmons"}, books[0].AuthorNames())
	require.Len(t, books[0].Editions, 1)
	assert.Equal(t, "9780553283686", books[0].Editions[0].ISBN13)
	assert.Equal(t, 482, books[0].TotalPages())
}

func TestGetUserBooksFiltersByStatus(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{
		"query Me": meResponse,
		"query UserBooks": `{"data": {"user_books": [
			{"id": 1, "book_id": 10, "status_id": 2},
			{"id": 2, "book_id": 11, "status_id": 3},
			{"id": 3, "book_id": 12, "status_id": 1}
		]}}`,
	}}
	client, _ := newTestClient(t, api)

	books, err := client.GetUserBooks(context.Background(), []int{StatusCurrentlyReading, StatusRead})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, 10, books[0].BookID)
	assert.Equal(t, 11, books[1].BookID)
}

func TestGetUserBookNotInLibrary(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{
		"query Me":                meResponse,
		"query UserBookByBookId": `{"data": {"user_books": []}}`,
	}}
	client, _ := newTestClient(t, api)

	ub, err := client.GetUserBook(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, ub)
}

func TestUpdateUserBook(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{
		"mutation UpdateUserBook": `{"data": {"update_user_book": {"id": 5,
			"user_book": {"id": 5, "book_id": 10, "status_id": 3, "rating": 4.5}}}}`,
	}}
	client, _ := newTestClient(t, api)

	status := StatusRead
	rating := 4.5
	ub, err := client.UpdateUserBook(context.Background(), 5, UserBookInput{StatusID: &status, Rating: &rating})
	require.NoError(t, err)
	assert.Equal(t, StatusRead, ub.StatusID)
	require.NotNil(t, ub.Rating)
	assert.Equal(t, 4.5, *ub.Rating)
}

func TestDryRunRecordsWithoutSending(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{"query Me": meResponse}}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		APIURL:            srv.URL,
		Token:             "test-token",
		RequestsPerMinute: 100000,
		DryRun:            true,
	})

	status := StatusCurrentlyReading
	ub, err := client.AddBookToLibrary(context.Background(), 10, UserBookInput{StatusID: &status})
	require.NoError(t, err)
	assert.Equal(t, StatusCurrentlyReading, ub.StatusID)

	pages := 120
	_, err = client.InsertUserBookRead(context.Background(), ub.ID, ReadInput{ProgressPages: &pages})
	require.NoError(t, err)

	require.NoError(t, client.DeleteUserBook(context.Background(), 5))

	log := client.DryRunLog()
	require.Len(t, log, 3)
	assert.Equal(t, "insert_user_book", log[0].Operation)
	assert.Equal(t, "insert_user_book_read", log[1].Operation)
	assert.Equal(t, "delete_user_book", log[2].Operation)
	assert.Equal(t, int64(0), api.mutations.Load())

	client.ClearDryRunLog()
	assert.Empty(t, client.DryRunLog())
}

func TestListOperations(t *testing.T) {
	api := &fakeAPI{t: t, responses: map[string]string{
		"query Me": meResponse,
		"query UserLists": `{"data": {"lists": [
			{"id": 1, "name": "Favorites", "slug": "favorites", "books_count": 3}]}}`,
		"query BookLists": `{"data": {"list_books": [
			{"id": 77, "list": {"id": 1, "name": "Favorites", "slug": "favorites"}}]}}`,
		"mutation AddBookToList":      `{"data": {"insert_list_book": {"id": 78}}}`,
		"mutation RemoveBookFromList": `{"data": {"delete_list_book": {"affected_rows": 1}}}`,
	}}
	client, _ := newTestClient(t, api)
	ctx := context.Background()

	lists, err := client.GetUserLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "Favorites", lists[0].Name)

	memberships, err := client.GetBookListMemberships(ctx, 10)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, 77, memberships[0].ListBookID)

	id, err := client.AddBookToList(ctx, 1, 11)
	require.NoError(t, err)
	assert.Equal(t, 78, id)

	require.NoError(t, client.RemoveBookFromList(ctx, 77))
}

func TestCurrentRead(t *testing.T) {
	progress := 0.5
	ub := &UserBook{Reads: []UserBookRead{
		{ID: 1, StartedAt: "2023-01-01", FinishedAt: "2023-02-01"},
		{ID: 2, StartedAt: "2024-01-01", FinishedAt: "", Progress: &progress},
		{ID: 3, StartedAt: "2022-01-01", FinishedAt: "2022-02-01"},
	}}

	// The unfinished re-read wins over any finished one.
	read := ub.CurrentRead()
	require.NotNil(t, read)
	assert.Equal(t, 2, read.ID)

	// With all reads finished, the most recent finish date wins.
	ub.Reads[1].FinishedAt = "2024-02-01"
	read = ub.CurrentRead()
	require.NotNil(t, read)
	assert.Equal(t, 2, read.ID)

	empty := &UserBook{}
	assert.Nil(t, empty.CurrentRead())
}

func TestNormalizeISBN(t *testing.T) {
	assert.Equal(t, "9780553283686", NormalizeISBN("978-0-553-28368-6"))
	assert.Equal(t, "0553283685", NormalizeISBN("0 553 28368 5"))
	assert.Equal(t, "", NormalizeISBN("12345"))
	assert.Equal(t, "", NormalizeISBN(""))
}
