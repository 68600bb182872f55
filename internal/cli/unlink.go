package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// UnlinkCommand removes the cached link of one book.
type UnlinkCommand struct {
	DatabasePath string
	BookID       uint
	Remote       bool
}

// NewUnlinkCommand creates a new UnlinkCommand
func NewUnlinkCommand() *UnlinkCommand {
	return &UnlinkCommand{}
}

// ParseFlags parses command line flags
func (cmd *UnlinkCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("unlink", flag.ExitOnError)

	var bookID uint64
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database file")
	fs.Uint64Var(&bookID, "book", 0, "Local book id to unlink")
	fs.BoolVar(&cmd.Remote, "remote", false, "Also remove the book from the Hardcover library")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s unlink -book <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Remove the Hardcover link of a local book. The snapshot is\n")
		fmt.Fprintf(os.Stderr, "discarded with it; the next sync run treats the book as new.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.BookID = uint(bookID)

	if cmd.BookID == 0 {
		fs.Usage()
		return fmt.Errorf("-book is required")
	}
	return nil
}

// Run executes the unlink command
func (cmd *UnlinkCommand) Run() error {
	env, err := openStack(cmd.DatabasePath, false)
	if err != nil {
		return err
	}
	defer env.Close()

	book, err := env.books.GetBookByID(cmd.BookID)
	if err != nil {
		return fmt.Errorf("book %d not found", cmd.BookID)
	}

	link, err := env.links.Get(cmd.BookID)
	if err != nil {
		return err
	}
	if link == nil {
		fmt.Printf("ℹ️  %q is not linked\n", book.Title)
		return nil
	}

	if cmd.Remote {
		if err := env.requireToken(); err != nil {
			return err
		}
		ctx := context.Background()
		ub, err := env.client.GetUserBook(ctx, link.HardcoverBookID)
		if err != nil {
			return fmt.Errorf("failed to look up remote entry: %w", err)
		}
		if ub == nil {
			fmt.Printf("ℹ️  %q is not in your Hardcover library\n", book.Title)
		} else if err := env.client.DeleteUserBook(ctx, ub.ID); err != nil {
			return fmt.Errorf("failed to remove remote entry: %w", err)
		} else {
			fmt.Printf("🗑️  Removed %q from your Hardcover library\n", book.Title)
		}
	}

	if err := env.links.Remove(cmd.BookID); err != nil {
		return fmt.Errorf("failed to remove link: %w", err)
	}
	fmt.Printf("✅ Unlinked %q (was %s)\n", book.Title, link.HardcoverSlug)
	return nil
}
