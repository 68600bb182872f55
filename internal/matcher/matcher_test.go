package matcher

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/hardcover-sync/internal/database/links"
	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
)

type fakeSearcher struct {
	byISBN      map[string][]hardcover.Book
	byQuery     map[string][]hardcover.Book
	isbnCalls   int
	searchCalls int
}

func (f *fakeSearcher) FindBooksByISBN(_ context.Context, isbn string) ([]hardcover.Book, error) {
	f.isbnCalls++
	return f.byISBN[hardcover.NormalizeISBN(isbn)], nil
}

func (f *fakeSearcher) SearchBooks(_ context.Context, query string) ([]hardcover.Book, error) {
	f.searchCalls++
	return f.byQuery[query], nil
}

func setupLinkRepo(t *testing.T) (*links.Repository, func()) {
	dbPath := "./test_matcher_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Link{}))

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}
	return links.NewRepository(db), cleanup
}

func TestResolve_UnambiguousISBN(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	dune := hardcover.Book{ID: 1, Title: "Dune", Slug: "dune"}
	client := &fakeSearcher{byISBN: map[string][]hardcover.Book{
		"9780441013593": {dune},
	}}
	m := NewMatcher(client, repo)

	result, err := m.Resolve(context.Background(), &entities.Book{
		ID: 1, Title: "Dune", ISBN: "9780441013593",
	})
	require.NoError(t, err)
	assert.Equal(t, Unambiguous, result.Kind)
	require.NotNil(t, result.Book())
	assert.Equal(t, "dune", result.Book().Slug)
	// The title search is never reached.
	assert.Zero(t, client.searchCalls)
}

func TestResolve_AmbiguousISBN(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	client := &fakeSearcher{byISBN: map[string][]hardcover.Book{
		"9780441013593": {
			{ID: 1, Title: "Dune", Slug: "dune"},
			{ID: 2, Title: "Dune (Annotated)", Slug: "dune-annotated"},
		},
	}}
	m := NewMatcher(client, repo)

	result, err := m.Resolve(context.Background(), &entities.Book{
		ID: 1, Title: "Dune", ISBN: "9780441013593",
	})
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, result.Kind)

	ids := map[int]bool{}
	for _, c := range result.Candidates {
		ids[c.ID] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true}, ids)
}

func TestResolve_SecondISBNMatches(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	client := &fakeSearcher{byISBN: map[string][]hardcover.Book{
		"0441013597": {{ID: 1, Title: "Dune", Slug: "dune"}},
	}}
	m := NewMatcher(client, repo)

	result, err := m.Resolve(context.Background(), &entities.Book{
		ID: 1, Title: "Dune", ISBN: "9780441013593", ISBN10: "0441013597",
	})
	require.NoError(t, err)
	assert.Equal(t, Unambiguous, result.Kind)
	assert.Equal(t, 2, client.isbnCalls)
}

func TestResolve_TitleFallback(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	client := &fakeSearcher{byQuery: map[string][]hardcover.Book{
		"Hyperion Dan Simmons": {{ID: 7, Title: "Hyperion", Slug: "hyperion"}},
	}}
	m := NewMatcher(client, repo)

	result, err := m.Resolve(context.Background(), &entities.Book{
		ID: 1, Title: "Hyperion", Authors: "Dan Simmons",
	})
	require.NoError(t, err)
	assert.Equal(t, Unambiguous, result.Kind)
	assert.Equal(t, "hyperion", result.Book().Slug)
}

func TestResolve_TitleFallback_ExactTitleWins(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	client := &fakeSearcher{byQuery: map[string][]hardcover.Book{
		"Dune Frank Herbert": {
			{ID: 1, Title: "Dune", Slug: "dune"},
			{ID: 2, Title: "Dune Messiah", Slug: "dune-messiah"},
			{ID: 3, Title: "Children of Dune", Slug: "children-of-dune"},
		},
	}}
	m := NewMatcher(client, repo)

	result, err := m.Resolve(context.Background(), &entities.Book{
		ID: 1, Title: "Dune", Authors: "Frank Herbert",
	})
	require.NoError(t, err)
	assert.Equal(t, Unambiguous, result.Kind)
	assert.Equal(t, "dune", result.Book().Slug)
}

func TestResolve_NoMatch(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	m := NewMatcher(&fakeSearcher{}, repo)

	result, err := m.Resolve(context.Background(), &entities.Book{ID: 1, Title: "Unknown"})
	require.NoError(t, err)
	assert.Equal(t, NoMatch, result.Kind)
	assert.Empty(t, result.Candidates)
}

func TestAccept_WritesLinkWithEdition(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	m := NewMatcher(&fakeSearcher{}, repo)
	book := &entities.Book{ID: 1, ISBN: "9780441013593"}
	candidate := &hardcover.Book{ID: 100, Slug: "dune", Editions: []hardcover.Edition{
		{ID: 10, ISBN13: "9780441099993"},
		{ID: 11, ISBN13: "9780441013593"},
	}}

	require.NoError(t, m.Accept(book, candidate))

	link, err := repo.Get(1)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, 100, link.HardcoverBookID)
	assert.Equal(t, "dune", link.HardcoverSlug)
	assert.Equal(t, 11, link.EditionID)
}

func TestResolveAll(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	// Book 3 is already linked and must be skipped entirely.
	require.NoError(t, repo.Put(&entities.Link{BookID: 3, HardcoverBookID: 300}))

	client := &fakeSearcher{
		byISBN: map[string][]hardcover.Book{
			"9780000000001": {{ID: 1, Title: "One", Slug: "one"}},
			"9780000000002": {
				{ID: 2, Title: "Two", Slug: "two"},
				{ID: 20, Title: "Two Deluxe", Slug: "two-deluxe"},
			},
		},
	}
	m := NewMatcher(client, repo)

	books := []entities.Book{
		{ID: 1, Title: "One", ISBN: "9780000000001"},
		{ID: 2, Title: "Two!", ISBN: "9780000000002"},
		{ID: 3, Title: "Three", ISBN: "9780000000003"},
		{ID: 4, Title: "Nowhere"},
	}

	results, err := m.ResolveAll(context.Background(), books)
	require.NoError(t, err)

	assert.Equal(t, Unambiguous, results[1].Kind)
	assert.Equal(t, Ambiguous, results[2].Kind)
	assert.NotContains(t, results, uint(3))
	assert.Equal(t, NoMatch, results[4].Kind)

	// Only the unambiguous match was auto-linked.
	link, err := repo.Get(1)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "one", link.HardcoverSlug)

	link, err = repo.Get(2)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestResolveAll_Cancellation(t *testing.T) {
	repo, cleanup := setupLinkRepo(t)
	defer cleanup()

	m := NewMatcher(&fakeSearcher{}, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ResolveAll(ctx, []entities.Book{{ID: 1, Title: "One"}})
	assert.ErrorIs(t, err, context.Canceled)
}
