package hardcover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 30 * time.Second
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	retryBackoffFactor = 2

	// userBooksPageSize is the page size for library pagination and the
	// batch size for slug lookups.
	userBooksPageSize = 100
)

// Config carries the client settings.
type Config struct {
	APIURL            string
	Token             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int

	// DryRun makes every mutating call validate and record what it would
	// send without sending it.
	DryRun bool
}

// DryRunEntry records a mutation that would have been sent in dry-run mode.
type DryRunEntry struct {
	Operation string         `json:"operation"`
	Variables map[string]any `json:"variables"`
}

// Client interfaces with the Hardcover GraphQL API.
//
// A single request is in flight at a time per client; the limiter paces
// requests below the per-account rate limit, and rate-limited requests are
// retried with exponential backoff plus jitter up to MaxRetries.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	limiter    *rate.Limiter
	maxRetries int
	dryRun     bool

	mu        sync.Mutex
	user      *User
	dryRunLog []DryRunEntry
}

// NewClient creates a Hardcover API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 55
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     cfg.APIURL,
		token:      cfg.Token,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		maxRetries: cfg.MaxRetries,
		dryRun:     cfg.DryRun,
	}
}

// DryRun reports whether the client is in dry-run mode.
func (c *Client) DryRun() bool {
	return c.dryRun
}

// DryRunLog returns the mutations recorded in dry-run mode.
func (c *Client) DryRunLog() []DryRunEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	log := make([]DryRunEntry, len(c.dryRunLog))
	copy(log, c.dryRunLog)
	return log
}

// ClearDryRunLog discards the recorded dry-run mutations.
func (c *Client) ClearDryRunLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dryRunLog = nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// execute runs a query and decodes the data envelope into out.
// Rate-limited requests are retried with backoff; other errors surface
// immediately.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.doRequest(ctx, query, variables, out)
		if lastErr == nil {
			return nil
		}
		if !IsRateLimited(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// executeMutation runs a mutation unless the client is in dry-run mode, in
// which case the operation is recorded and executed=false is returned so the
// caller can synthesize the would-be result.
func (c *Client) executeMutation(ctx context.Context, operation, query string, variables map[string]any, out any) (executed bool, err error) {
	if c.dryRun {
		c.mu.Lock()
		c.dryRunLog = append(c.dryRunLog, DryRunEntry{Operation: operation, Variables: variables})
		c.mu.Unlock()
		return false, nil
	}
	if err := c.execute(ctx, query, variables, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) doRequest(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	case resp.StatusCode != http.StatusOK:
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		return classifyGraphQLErrors(envelope.Errors)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// classifyGraphQLErrors maps GraphQL-level errors to the client taxonomy.
// Hardcover reports rate limiting and auth failures inside the errors array
// with an HTTP 200.
func classifyGraphQLErrors(errs []graphQLError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		code := strings.ToLower(e.Extensions.Code)
		if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid token") ||
			strings.Contains(msg, "jwt") || code == "invalid-jwt" {
			return ErrUnauthorized
		}
		if strings.Contains(msg, "rate limit") || strings.Contains(msg, "throttl") {
			return ErrRateLimited
		}
		msgs = append(msgs, e.Message)
	}
	return &APIError{Message: strings.Join(msgs, "; ")}
}

func retryDelay(attempt int) time.Duration {
	delay := initialRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(retryBackoffFactor)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Half fixed, half jitter, so concurrent clients do not retry in lockstep.
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// =========================================================================
// User
// =========================================================================

// Me returns the authenticated user and caches the identity for subsequent
// calls that need the user id.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var result struct {
		Me json.RawMessage `json:"me"`
	}
	if err := c.execute(ctx, meQuery, nil, &result); err != nil {
		return nil, err
	}

	var user User
	// Some schema versions return me as a single-element list.
	if err := json.Unmarshal(result.Me, &user); err != nil {
		var users []User
		if err := json.Unmarshal(result.Me, &users); err != nil || len(users) == 0 {
			return nil, ErrUnauthorized
		}
		user = users[0]
	}
	if user.ID == 0 {
		return nil, ErrUnauthorized
	}

	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	return &user, nil
}

// ValidateToken probes the token, returning the user on success.
func (c *Client) ValidateToken(ctx context.Context) (*User, error) {
	return c.Me(ctx)
}

func (c *Client) userID(ctx context.Context) (int, error) {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user != nil {
		return user.ID, nil
	}
	fetched, err := c.Me(ctx)
	if err != nil {
		return 0, err
	}
	return fetched.ID, nil
}

// =========================================================================
// Book lookup
// =========================================================================

type editionWithBook struct {
	Edition
	Book *struct {
		ID            int    `json:"id"`
		Title         string `json:"title"`
		Slug          string `json:"slug"`
		ReleaseDate   string `json:"release_date"`
		Contributions []struct {
			Author Author `json:"author"`
		} `json:"contributions"`
	} `json:"book"`
}

// FindBooksByISBN looks up books whose editions carry the given ISBN. The
// search is exact; multiple books can share an ISBN when the catalog has
// duplicates, so all distinct hits are returned.
func (c *Client) FindBooksByISBN(ctx context.Context, isbn string) ([]Book, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, nil
	}

	query := bookByISBN13Query
	if len(isbn) == 10 {
		query = bookByISBN10Query
	}

	var result struct {
		Editions []editionWithBook `json:"editions"`
	}
	if err := c.execute(ctx, query, map[string]any{"isbn": isbn}, &result); err != nil {
		return nil, err
	}

	var books []Book
	seen := map[int]bool{}
	for _, ed := range result.Editions {
		if ed.Book == nil || seen[ed.Book.ID] {
			continue
		}
		seen[ed.Book.ID] = true
		book := Book{
			ID:          ed.Book.ID,
			Title:       ed.Book.Title,
			Slug:        ed.Book.Slug,
			ReleaseDate: ed.Book.ReleaseDate,
			Editions:    []Edition{ed.Edition},
		}
		for _, contrib := range ed.Book.Contributions {
			book.Authors = append(book.Authors, contrib.Author)
		}
		books = append(books, book)
	}
	return books, nil
}

type searchDocument struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	AuthorNames []string    `json:"author_names"`
	ISBNs       []string    `json:"isbns"`
	ReleaseYear int         `json:"release_year"`
	Pages       int         `json:"pages"`
}

// SearchBooks searches the catalog by free-text query (title, author).
// Results arrive ordered by relevance.
func (c *Client) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	var result struct {
		Search struct {
			Results json.RawMessage `json:"results"`
		} `json:"search"`
	}
	if err := c.execute(ctx, bookSearchQuery, map[string]any{"query": query}, &result); err != nil {
		return nil, err
	}

	// The search index returns {hits: [{document: {...}}]}; older schema
	// versions returned a bare list of documents.
	var hits struct {
		Hits []struct {
			Document searchDocument `json:"document"`
		} `json:"hits"`
	}
	var docs []searchDocument
	if err := json.Unmarshal(result.Search.Results, &hits); err == nil && len(hits.Hits) > 0 {
		for _, h := range hits.Hits {
			docs = append(docs, h.Document)
		}
	} else if err := json.Unmarshal(result.Search.Results, &docs); err != nil {
		return nil, nil
	}

	books := make([]Book, 0, len(docs))
	for _, doc := range docs {
		id, err := doc.ID.Int64()
		if err != nil || id == 0 {
			continue
		}
		book := Book{
			ID:    int(id),
			Title: doc.Title,
			Slug:  doc.Slug,
		}
		if doc.ReleaseYear != 0 {
			book.ReleaseDate = fmt.Sprintf("%d", doc.ReleaseYear)
		}
		for i, name := range doc.AuthorNames {
			// Search documents carry names only; synthetic negative ids
			// mark authors that were not resolved to catalog entries.
			book.Authors = append(book.Authors, Author{ID: -(i + 1), Name: name})
		}
		for i, isbn := range doc.ISBNs {
			clean := NormalizeISBN(isbn)
			ed := Edition{ID: -(i + 1), Pages: doc.Pages}
			switch len(clean) {
			case 13:
				ed.ISBN13 = clean
			case 10:
				ed.ISBN10 = clean
			default:
				continue
			}
			book.Editions = append(book.Editions, ed)
		}
		books = append(books, book)
	}
	return books, nil
}

// GetBookByID fetches a book by Hardcover id; nil when not found.
func (c *Client) GetBookByID(ctx context.Context, id int) (*Book, error) {
	var result struct {
		Books []Book `json:"books"`
	}
	if err := c.execute(ctx, bookByIDQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}
	if len(result.Books) == 0 {
		return nil, nil
	}
	return &result.Books[0], nil
}

// GetBookBySlug fetches a book by slug; nil when not found.
func (c *Client) GetBookBySlug(ctx context.Context, slug string) (*Book, error) {
	var result struct {
		Books []Book `json:"books"`
	}
	if err := c.execute(ctx, bookBySlugQuery, map[string]any{"slug": slug}, &result); err != nil {
		return nil, err
	}
	if len(result.Books) == 0 {
		return nil, nil
	}
	return &result.Books[0], nil
}

// =========================================================================
// User library
// =========================================================================

// GetUserBooks fetches the user's library, fully materialized. statusIDs
// filters by reading status; empty means all.
func (c *Client) GetUserBooks(ctx context.Context, statusIDs []int) ([]UserBook, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}

	wanted := map[int]bool{}
	for _, id := range statusIDs {
		wanted[id] = true
	}

	var all []UserBook
	for offset := 0; ; offset += userBooksPageSize {
		var result struct {
			UserBooks []UserBook `json:"user_books"`
		}
		vars := map[string]any{"user_id": userID, "limit": userBooksPageSize, "offset": offset}
		if err := c.execute(ctx, userBooksQuery, vars, &result); err != nil {
			return nil, err
		}
		for _, ub := range result.UserBooks {
			if len(wanted) == 0 || wanted[ub.StatusID] {
				all = append(all, ub)
			}
		}
		if len(result.UserBooks) < userBooksPageSize {
			break
		}
	}
	return all, nil
}

// GetUserBook fetches the user's entry for a specific book; nil when the
// book is not in the user's library.
func (c *Client) GetUserBook(ctx context.Context, bookID int) (*UserBook, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}

	var result struct {
		UserBooks []UserBook `json:"user_books"`
	}
	vars := map[string]any{"user_id": userID, "book_id": bookID}
	if err := c.execute(ctx, userBookByBookIDQuery, vars, &result); err != nil {
		return nil, err
	}
	if len(result.UserBooks) == 0 {
		return nil, nil
	}
	return &result.UserBooks[0], nil
}

// GetUserBooksBySlugs fetches user entries for the given book slugs,
// batching to stay under query size limits.
func (c *Client) GetUserBooksBySlugs(ctx context.Context, slugs []string) ([]UserBook, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}

	var all []UserBook
	for i := 0; i < len(slugs); i += userBooksPageSize {
		end := i + userBooksPageSize
		if end > len(slugs) {
			end = len(slugs)
		}
		var result struct {
			UserBooks []UserBook `json:"user_books"`
		}
		vars := map[string]any{"user_id": userID, "slugs": slugs[i:end]}
		if err := c.execute(ctx, userBooksBySlugsQuery, vars, &result); err != nil {
			return nil, err
		}
		all = append(all, result.UserBooks...)
	}
	return all, nil
}

// UserBookInput carries the updatable user_book fields. Nil/empty fields are
// omitted from the mutation, so reapplying the same values is a remote no-op.
type UserBookInput struct {
	StatusID   *int
	Rating     *float64
	StartedAt  string // YYYY-MM-DD, sets first_started_reading_date
	FinishedAt string // YYYY-MM-DD, sets last_read_date
	Review     *string
	EditionID  int
}

func (in UserBookInput) object() map[string]any {
	obj := map[string]any{}
	if in.StatusID != nil {
		obj["status_id"] = *in.StatusID
	}
	if in.Rating != nil {
		obj["rating"] = *in.Rating
	}
	if in.StartedAt != "" {
		obj["first_started_reading_date"] = in.StartedAt
	}
	if in.FinishedAt != "" {
		obj["last_read_date"] = in.FinishedAt
	}
	if in.Review != nil {
		obj["review_raw"] = *in.Review
	}
	if in.EditionID != 0 {
		obj["edition_id"] = in.EditionID
	}
	return obj
}

// AddBookToLibrary creates a user_book entry. Reading progress is tracked
// separately via InsertUserBookRead.
func (c *Client) AddBookToLibrary(ctx context.Context, bookID int, in UserBookInput) (*UserBook, error) {
	obj := in.object()
	obj["book_id"] = bookID

	var result struct {
		Insert struct {
			UserBook UserBook `json:"user_book"`
		} `json:"insert_user_book"`
	}
	executed, err := c.executeMutation(ctx, "insert_user_book", insertUserBookMutation,
		map[string]any{"object": obj}, &result)
	if err != nil {
		return nil, err
	}
	if !executed {
		ub := UserBook{ID: -1, BookID: bookID}
		if in.StatusID != nil {
			ub.StatusID = *in.StatusID
		}
		ub.Rating = in.Rating
		return &ub, nil
	}
	ub := result.Insert.UserBook
	if ub.ID == 0 {
		return nil, &APIError{Message: "insert_user_book returned no data"}
	}
	return &ub, nil
}

// UpdateUserBook updates an existing user_book entry.
func (c *Client) UpdateUserBook(ctx context.Context, userBookID int, in UserBookInput) (*UserBook, error) {
	var result struct {
		Update struct {
			UserBook UserBook `json:"user_book"`
		} `json:"update_user_book"`
	}
	executed, err := c.executeMutation(ctx, "update_user_book", updateUserBookMutation,
		map[string]any{"id": userBookID, "object": in.object()}, &result)
	if err != nil {
		return nil, err
	}
	if !executed {
		ub := UserBook{ID: userBookID}
		if in.StatusID != nil {
			ub.StatusID = *in.StatusID
		}
		ub.Rating = in.Rating
		return &ub, nil
	}
	ub := result.Update.UserBook
	if ub.ID == 0 {
		return nil, &APIError{Message: "update_user_book returned no data"}
	}
	return &ub, nil
}

// DeleteUserBook removes a book from the user's library.
func (c *Client) DeleteUserBook(ctx context.Context, userBookID int) error {
	var result struct {
		Delete struct {
			ID int `json:"id"`
		} `json:"delete_user_book"`
	}
	executed, err := c.executeMutation(ctx, "delete_user_book", deleteUserBookMutation,
		map[string]any{"id": userBookID}, &result)
	if err != nil {
		return err
	}
	if executed && result.Delete.ID == 0 {
		return &APIError{Message: "delete_user_book returned no data"}
	}
	return nil
}

// ReadInput carries the fields of a reading session mutation.
type ReadInput struct {
	StartedAt     string // YYYY-MM-DD
	FinishedAt    string // YYYY-MM-DD
	Progress      *float64
	ProgressPages *int
	EditionID     int
}

func (in ReadInput) object() map[string]any {
	obj := map[string]any{}
	if in.StartedAt != "" {
		obj["started_at"] = in.StartedAt
	}
	if in.FinishedAt != "" {
		obj["finished_at"] = in.FinishedAt
	}
	if in.Progress != nil {
		obj["progress"] = *in.Progress
	}
	if in.ProgressPages != nil {
		obj["progress_pages"] = *in.ProgressPages
	}
	if in.EditionID != 0 {
		obj["edition_id"] = in.EditionID
	}
	return obj
}

func (in ReadInput) synthetic(id int) *UserBookRead {
	return &UserBookRead{
		ID:            id,
		StartedAt:     in.StartedAt,
		FinishedAt:    in.FinishedAt,
		Progress:      in.Progress,
		ProgressPages: in.ProgressPages,
		EditionID:     in.EditionID,
	}
}

// InsertUserBookRead creates a new reading session for a user_book.
func (c *Client) InsertUserBookRead(ctx context.Context, userBookID int, in ReadInput) (*UserBookRead, error) {
	var result struct {
		Insert struct {
			Read UserBookRead `json:"user_book_read"`
		} `json:"insert_user_book_read"`
	}
	executed, err := c.executeMutation(ctx, "insert_user_book_read", insertUserBookReadMutation,
		map[string]any{"user_book_id": userBookID, "user_book_read": in.object()}, &result)
	if err != nil {
		return nil, err
	}
	if !executed {
		return in.synthetic(-1), nil
	}
	read := result.Insert.Read
	if read.ID == 0 {
		return nil, &APIError{Message: "insert_user_book_read returned no data"}
	}
	return &read, nil
}

// UpdateUserBookRead updates an existing reading session.
func (c *Client) UpdateUserBookRead(ctx context.Context, readID int, in ReadInput) (*UserBookRead, error) {
	var result struct {
		Update struct {
			Read UserBookRead `json:"user_book_read"`
		} `json:"update_user_book_read"`
	}
	executed, err := c.executeMutation(ctx, "update_user_book_read", updateUserBookReadMutation,
		map[string]any{"id": readID, "object": in.object()}, &result)
	if err != nil {
		return nil, err
	}
	if !executed {
		return in.synthetic(readID), nil
	}
	read := result.Update.Read
	if read.ID == 0 {
		return nil, &APIError{Message: "update_user_book_read returned no data"}
	}
	return &read, nil
}

// =========================================================================
// Lists
// =========================================================================

// GetUserLists returns the user's lists.
func (c *Client) GetUserLists(ctx context.Context) ([]List, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}
	var result struct {
		Lists []List `json:"lists"`
	}
	if err := c.execute(ctx, userListsQuery, map[string]any{"user_id": userID}, &result); err != nil {
		return nil, err
	}
	return result.Lists, nil
}

// GetBookListMemberships returns which of the user's lists contain the book,
// including the list_book ids required for removal.
func (c *Client) GetBookListMemberships(ctx context.Context, bookID int) ([]ListBookMembership, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}
	var result struct {
		ListBooks []ListBookMembership `json:"list_books"`
	}
	vars := map[string]any{"book_id": bookID, "user_id": userID}
	if err := c.execute(ctx, bookListsQuery, vars, &result); err != nil {
		return nil, err
	}
	return result.ListBooks, nil
}

// AddBookToList adds a book to a list, returning the new list_book id.
func (c *Client) AddBookToList(ctx context.Context, listID, bookID int) (int, error) {
	var result struct {
		Insert struct {
			ID int `json:"id"`
		} `json:"insert_list_book"`
	}
	executed, err := c.executeMutation(ctx, "insert_list_book", addBookToListMutation,
		map[string]any{"list_id": listID, "book_id": bookID}, &result)
	if err != nil {
		return 0, err
	}
	if !executed {
		return -1, nil
	}
	return result.Insert.ID, nil
}

// RemoveBookFromList removes a list_book entry (not the book itself).
func (c *Client) RemoveBookFromList(ctx context.Context, listBookID int) error {
	var result struct {
		Delete struct {
			AffectedRows int `json:"affected_rows"`
		} `json:"delete_list_book"`
	}
	executed, err := c.executeMutation(ctx, "delete_list_book", removeBookFromListMutation,
		map[string]any{"list_book_id": listBookID}, &result)
	if err != nil {
		return err
	}
	if executed && result.Delete.AffectedRows == 0 {
		return &APIError{Message: "delete_list_book affected no rows"}
	}
	return nil
}
