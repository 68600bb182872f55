package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// ValidateCommand checks the configured API token against Hardcover.
type ValidateCommand struct {
	DatabasePath string
}

// NewValidateCommand creates a new ValidateCommand
func NewValidateCommand() *ValidateCommand {
	return &ValidateCommand{}
}

// ParseFlags parses command line flags
func (cmd *ValidateCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s validate [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Validate the configured Hardcover API token.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the validate command
func (cmd *ValidateCommand) Run() error {
	fmt.Println("🔑 Hardcover Token Check")
	fmt.Println("========================")

	env, err := openStack(cmd.DatabasePath, false)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.requireToken(); err != nil {
		return err
	}

	user, err := env.client.ValidateToken(context.Background())
	if err != nil {
		return fmt.Errorf("token validation failed: %w", err)
	}

	fmt.Printf("✅ Token is valid\n")
	fmt.Printf("👤 Logged in as: %s (id %d)\n", user.Username, user.ID)
	if user.BooksCount > 0 {
		fmt.Printf("📚 Remote library: %d books\n", user.BooksCount)
	}
	return nil
}
