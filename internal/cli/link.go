package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/hardcover-sync/internal/matcher"
)

// LinkCommand matches the whole local library against the Hardcover catalog,
// auto-linking every unambiguous match.
type LinkCommand struct {
	DatabasePath string
	Verbose      bool
}

// NewLinkCommand creates a new LinkCommand
func NewLinkCommand() *LinkCommand {
	return &LinkCommand{}
}

// ParseFlags parses command line flags
func (cmd *LinkCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("link", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database file")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "List every match candidate")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s link [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Match local books against Hardcover and cache the links.\n\n")
		fmt.Fprintf(os.Stderr, "Unambiguous matches are linked automatically. Books with several\n")
		fmt.Fprintf(os.Stderr, "candidates are listed so they can be linked one by one with sync-to\n")
		fmt.Fprintf(os.Stderr, "or through the API.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s link\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s link -verbose\n", os.Args[0])
	}

	return fs.Parse(args)
}

// Run executes the link command
func (cmd *LinkCommand) Run() error {
	fmt.Println("🔗 Hardcover Link")
	fmt.Println("=================")

	env, err := openStack(cmd.DatabasePath, false)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.requireToken(); err != nil {
		return err
	}

	allBooks, err := env.books.GetAllBooks()
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	fmt.Printf("📚 Library: %d books\n", len(allBooks))

	m := matcher.NewMatcher(env.client, env.links)
	results, err := m.ResolveAll(context.Background(), allBooks)
	if err != nil {
		return fmt.Errorf("matching failed: %w", err)
	}

	linked, ambiguous, unmatched := 0, 0, 0
	for _, book := range allBooks {
		result, ok := results[book.ID]
		if !ok {
			continue // already linked
		}
		switch result.Kind {
		case matcher.Unambiguous:
			linked++
			if cmd.Verbose {
				fmt.Printf("  ✅ %s → %s\n", book.Title, result.Book().Slug)
			}
		case matcher.Ambiguous:
			ambiguous++
			fmt.Printf("  ❓ %s has %d candidates:\n", book.Title, len(result.Candidates))
			for _, c := range result.Candidates {
				fmt.Printf("     - %s by %s (%s)\n", c.Title, c.AuthorNames(), c.Slug)
			}
		default:
			unmatched++
			if cmd.Verbose {
				fmt.Printf("  ❌ %s: no match\n", book.Title)
			}
		}
	}

	skipped := len(allBooks) - len(results)
	fmt.Printf("\n✅ Linked %d books (%d already linked, %d ambiguous, %d unmatched)\n",
		linked, skipped, ambiguous, unmatched)
	if ambiguous > 0 {
		fmt.Println("💡 Ambiguous books can be resolved during an interactive sync run")
	}
	return nil
}
