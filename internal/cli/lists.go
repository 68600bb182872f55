package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/hardcover-sync/internal/syncer"
)

// ListCommand adds a linked book to a Hardcover list or removes it.
type ListCommand struct {
	name   string
	remove bool

	DatabasePath string
	List         string
	BookID       uint
}

// NewListAddCommand creates the list-add command.
func NewListAddCommand() *ListCommand {
	return &ListCommand{name: "list-add"}
}

// NewListRemoveCommand creates the list-remove command.
func NewListRemoveCommand() *ListCommand {
	return &ListCommand{name: "list-remove", remove: true}
}

// ParseFlags parses command line flags
func (cmd *ListCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet(cmd.name, flag.ExitOnError)

	var bookID uint64
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database file")
	fs.StringVar(&cmd.List, "list", "", "List name or slug")
	fs.Uint64Var(&bookID, "book", 0, "Local book id")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s -list <name> -book <id> [options]\n\n", os.Args[0], cmd.name)
		if cmd.remove {
			fmt.Fprintf(os.Stderr, "Remove a linked book from one of your Hardcover lists.\n\n")
		} else {
			fmt.Fprintf(os.Stderr, "Add a linked book to one of your Hardcover lists.\n\n")
		}
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s %s -list favorites -book 42\n", os.Args[0], cmd.name)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.BookID = uint(bookID)

	if cmd.List == "" || cmd.BookID == 0 {
		fs.Usage()
		return fmt.Errorf("-list and -book are required")
	}
	return nil
}

// Run executes the list command
func (cmd *ListCommand) Run() error {
	env, err := openStack(cmd.DatabasePath, false)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.requireToken(); err != nil {
		return err
	}

	book, err := env.books.GetBookByID(cmd.BookID)
	if err != nil {
		return fmt.Errorf("book %d not found", cmd.BookID)
	}

	link, err := env.links.Get(cmd.BookID)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("%q is not linked; run the link command first", book.Title)
	}

	ctx := context.Background()
	manager := syncer.NewListManager(env.client)

	list, err := manager.FindList(ctx, cmd.List)
	if err != nil {
		return err
	}

	if cmd.remove {
		removed, err := manager.RemoveFromList(ctx, link.HardcoverBookID, list.ID)
		if err != nil {
			return fmt.Errorf("failed to remove from list: %w", err)
		}
		if !removed {
			fmt.Printf("ℹ️  %q was not on %q\n", book.Title, list.Name)
			return nil
		}
		fmt.Printf("✅ Removed %q from %q\n", book.Title, list.Name)
		return nil
	}

	added, err := manager.AddToList(ctx, link.HardcoverBookID, list.ID)
	if err != nil {
		return fmt.Errorf("failed to add to list: %w", err)
	}
	if !added {
		fmt.Printf("ℹ️  %q is already on %q\n", book.Title, list.Name)
		return nil
	}
	fmt.Printf("✅ Added %q to %q\n", book.Title, list.Name)
	return nil
}
