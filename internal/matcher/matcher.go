// Package matcher resolves local library records to Hardcover books.
//
// Resolution tries exact ISBN lookups first and falls back to a title and
// author search. Batch resolution auto-links unambiguous matches and defers
// ambiguous ones to the caller, so bulk linking never blocks on user input
// for the easy cases.
package matcher

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mrlokans/hardcover-sync/internal/database/links"
	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
)

// Kind classifies a resolution outcome.
type Kind string

const (
	// NoMatch means no remote candidate was found.
	NoMatch Kind = "no_match"
	// Unambiguous means exactly one candidate was found and can be linked
	// without user input.
	Unambiguous Kind = "unambiguous"
	// Ambiguous means several candidates were found and the caller must
	// choose one.
	Ambiguous Kind = "ambiguous"
)

// MatchResult is the outcome of resolving one local record.
type MatchResult struct {
	Kind       Kind
	Candidates []hardcover.Book // exactly one when Unambiguous
}

// Book returns the single candidate of an unambiguous result, or nil.
func (r MatchResult) Book() *hardcover.Book {
	if r.Kind != Unambiguous || len(r.Candidates) != 1 {
		return nil
	}
	return &r.Candidates[0]
}

// RemoteSearcher is the slice of the Hardcover client the matcher needs.
type RemoteSearcher interface {
	FindBooksByISBN(ctx context.Context, isbn string) ([]hardcover.Book, error)
	SearchBooks(ctx context.Context, query string) ([]hardcover.Book, error)
}

// Matcher resolves local records against the Hardcover catalog and writes
// accepted links into the link cache.
type Matcher struct {
	client RemoteSearcher
	links  *links.Repository
}

// NewMatcher creates a matcher.
func NewMatcher(client RemoteSearcher, linkRepo *links.Repository) *Matcher {
	return &Matcher{client: client, links: linkRepo}
}

// Resolve finds remote candidates for a local record.
//
// Each ISBN on the record is tried in turn against exact search: a single
// hit resolves immediately, multiple hits accumulate into the ambiguous set.
// Only when no ISBN yields anything does the title and author search run.
func (m *Matcher) Resolve(ctx context.Context, book *entities.Book) (MatchResult, error) {
	var candidates []hardcover.Book
	seen := map[int]bool{}

	for _, isbn := range book.ISBNs() {
		found, err := m.client.FindBooksByISBN(ctx, isbn)
		if err != nil {
			return MatchResult{}, fmt.Errorf("isbn lookup %q: %w", isbn, err)
		}
		if len(found) == 1 && len(candidates) == 0 {
			return MatchResult{Kind: Unambiguous, Candidates: found}, nil
		}
		for _, b := range found {
			if !seen[b.ID] {
				seen[b.ID] = true
				candidates = append(candidates, b)
			}
		}
	}

	if len(candidates) == 1 {
		return MatchResult{Kind: Unambiguous, Candidates: candidates}, nil
	}
	if len(candidates) > 1 {
		return MatchResult{Kind: Ambiguous, Candidates: candidates}, nil
	}

	return m.resolveByTitle(ctx, book)
}

func (m *Matcher) resolveByTitle(ctx context.Context, book *entities.Book) (MatchResult, error) {
	if book.Title == "" {
		return MatchResult{Kind: NoMatch}, nil
	}

	query := book.Title
	if authors := book.AuthorList(); len(authors) > 0 {
		query += " " + authors[0]
	}

	found, err := m.client.SearchBooks(ctx, query)
	if err != nil {
		return MatchResult{}, fmt.Errorf("title search %q: %w", query, err)
	}

	switch len(found) {
	case 0:
		return MatchResult{Kind: NoMatch}, nil
	case 1:
		return MatchResult{Kind: Unambiguous, Candidates: found}, nil
	}

	// An exact title hit among fuzzy results still needs user confirmation
	// unless it is the only exact one.
	var exact []hardcover.Book
	for _, b := range found {
		if strings.EqualFold(strings.TrimSpace(b.Title), strings.TrimSpace(book.Title)) {
			exact = append(exact, b)
		}
	}
	if len(exact) == 1 {
		return MatchResult{Kind: Unambiguous, Candidates: exact}, nil
	}

	return MatchResult{Kind: Ambiguous, Candidates: found}, nil
}

// Accept links a local record to the chosen candidate, replacing any
// existing link for the record.
func (m *Matcher) Accept(book *entities.Book, candidate *hardcover.Book) error {
	link := &entities.Link{
		BookID:          book.ID,
		HardcoverBookID: candidate.ID,
		HardcoverSlug:   candidate.Slug,
	}
	if id := matchingEditionID(book, candidate); id > 0 {
		link.EditionID = id
	}
	if err := m.links.Put(link); err != nil {
		return fmt.Errorf("link book %d to %s: %w", book.ID, candidate.Slug, err)
	}
	return nil
}

// matchingEditionID picks the candidate edition whose ISBN matches the local
// record, so progress mutations target the right page count.
func matchingEditionID(book *entities.Book, candidate *hardcover.Book) int {
	for _, isbn := range book.ISBNs() {
		clean := hardcover.NormalizeISBN(isbn)
		for _, ed := range candidate.Editions {
			if ed.ID > 0 && (ed.ISBN13 == clean || ed.ISBN10 == clean) {
				return ed.ID
			}
		}
	}
	return 0
}

// ResolveAll resolves a batch of records, auto-accepting every unambiguous
// match. Already-linked records are skipped. Ambiguous and unmatched results
// are returned for manual resolution.
func (m *Matcher) ResolveAll(ctx context.Context, books []entities.Book) (map[uint]MatchResult, error) {
	results := make(map[uint]MatchResult, len(books))

	for i := range books {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		book := &books[i]

		existing, err := m.links.Get(book.ID)
		if err != nil {
			return results, err
		}
		if existing != nil {
			continue
		}

		result, err := m.Resolve(ctx, book)
		if err != nil {
			if hardcover.IsUnauthorized(err) {
				return results, err
			}
			log.Printf("Matching %q failed: %v", book.Title, err)
			results[book.ID] = MatchResult{Kind: NoMatch}
			continue
		}

		if result.Kind == Unambiguous {
			if err := m.Accept(book, result.Book()); err != nil {
				return results, err
			}
		}
		results[book.ID] = result
	}

	return results, nil
}
