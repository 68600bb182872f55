package hardcover

import (
	"encoding/json"
	"strings"
)

// Reading status IDs as defined by Hardcover.
const (
	StatusWantToRead       = 1
	StatusCurrentlyReading = 2
	StatusRead             = 3
	StatusPaused           = 4
	StatusDidNotFinish     = 5
	StatusIgnored          = 6
)

// StatusNames maps Hardcover status IDs to their canonical labels.
var StatusNames = map[int]string{
	StatusWantToRead:       "Want to Read",
	StatusCurrentlyReading: "Currently Reading",
	StatusRead:             "Read",
	StatusPaused:           "Paused",
	StatusDidNotFinish:     "Did Not Finish",
	StatusIgnored:          "Ignored",
}

// StatusIDs is the reverse of StatusNames.
var StatusIDs = func() map[string]int {
	m := make(map[string]int, len(StatusNames))
	for id, name := range StatusNames {
		m[name] = id
	}
	return m
}()

// NormalizeISBN removes dashes and spaces. Returns "" for anything that is
// not 10 or 13 characters after cleaning.
func NormalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	isbn = strings.TrimSpace(isbn)
	if len(isbn) != 10 && len(isbn) != 13 {
		return ""
	}
	return isbn
}

// User is the authenticated Hardcover user.
type User struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	BooksCount int    `json:"books_count"`
}

type Author struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Edition struct {
	ID     int    `json:"id"`
	ISBN13 string `json:"isbn_13"`
	ISBN10 string `json:"isbn_10"`
	Title  string `json:"title"`
	Pages  int    `json:"pages"`
}

// Book is a Hardcover catalog entry. The slug is the stable human-readable
// key and is preferred over the numeric id for persisted links.
type Book struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	ReleaseDate string    `json:"release_date"`
	Authors     []Author  `json:"authors"`
	Editions    []Edition `json:"editions"`
}

// UnmarshalJSON accepts both the flat authors shape and the nested
// contributions shape the GraphQL API returns for catalog rows.
func (b *Book) UnmarshalJSON(data []byte) error {
	type alias Book
	aux := struct {
		*alias
		Contributions []struct {
			Author Author `json:"author"`
		} `json:"contributions"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	for _, c := range aux.Contributions {
		b.Authors = append(b.Authors, c.Author)
	}
	return nil
}

// TotalPages returns the page count of the first edition that has one, or 0.
func (b *Book) TotalPages() int {
	for _, ed := range b.Editions {
		if ed.Pages > 0 {
			return ed.Pages
		}
	}
	return 0
}

// AuthorNames returns the book's author names.
func (b *Book) AuthorNames() []string {
	names := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		names = append(names, a.Name)
	}
	return names
}

// UserBookRead is a single reading session. Hardcover supports re-reads:
// each read carries its own dates and progress.
type UserBookRead struct {
	ID            int      `json:"id"`
	StartedAt     string   `json:"started_at"`
	FinishedAt    string   `json:"finished_at"`
	Progress      *float64 `json:"progress"` // 0.0-1.0
	ProgressPages *int     `json:"progress_pages"`
	EditionID     int      `json:"edition_id"`
}

// ProgressPercent returns progress on a 0-100 scale, or nil.
func (r *UserBookRead) ProgressPercent() *float64 {
	if r.Progress == nil {
		return nil
	}
	pct := *r.Progress * 100
	return &pct
}

// UserBook is the user's relationship to a Hardcover book.
type UserBook struct {
	ID        int            `json:"id"`
	BookID    int            `json:"book_id"`
	EditionID int            `json:"edition_id"`
	StatusID  int            `json:"status_id"`
	Rating    *float64       `json:"rating"`
	Review    string         `json:"review_raw"`
	Book      *Book          `json:"book"`
	Edition   *Edition       `json:"edition"`
	Reads     []UserBookRead `json:"user_book_reads"`
}

// CurrentRead selects the reading session whose dates and progress are
// surfaced for sync: the in-progress read (no finished date) wins; otherwise
// the read with the most recent finished date.
func (ub *UserBook) CurrentRead() *UserBookRead {
	if len(ub.Reads) == 0 {
		return nil
	}
	var latest *UserBookRead
	for i := range ub.Reads {
		r := &ub.Reads[i]
		if r.FinishedAt == "" {
			return r
		}
		if latest == nil || r.FinishedAt > latest.FinishedAt {
			latest = r
		}
	}
	return latest
}

// List is a user-curated Hardcover list.
type List struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	BooksCount int    `json:"books_count"`
}

// ListBookMembership records a book's presence on a list; the ListBookID is
// what the removal mutation needs.
type ListBookMembership struct {
	ListBookID int  `json:"id"`
	List       List `json:"list"`
}
