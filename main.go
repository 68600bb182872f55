package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/hardcover-sync/internal/cli"
	"github.com/mrlokans/hardcover-sync/internal/config"
	"github.com/mrlokans/hardcover-sync/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is the shape every CLI subcommand follows.
type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "validate":
		cmd = cli.NewValidateCommand()
	case "link":
		cmd = cli.NewLinkCommand()
	case "unlink":
		cmd = cli.NewUnlinkCommand()
	case "sync-to":
		cmd = cli.NewSyncToCommand()
	case "sync-from":
		cmd = cli.NewSyncFromCommand()
	case "list-add":
		cmd = cli.NewListAddCommand()
	case "list-remove":
		cmd = cli.NewListRemoveCommand()
	case "version":
		fmt.Printf("hardcover-sync %s (%s)\n", Version, Commit)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  serve        Run the HTTP server (default)")
	fmt.Println("  validate     Check the configured Hardcover API token")
	fmt.Println("  link         Match local books against Hardcover and cache the links")
	fmt.Println("  unlink       Remove the cached link of one book")
	fmt.Println("  sync-to      Push local reading progress to Hardcover")
	fmt.Println("  sync-from    Pull reading progress from Hardcover")
	fmt.Println("  list-add     Add a linked book to a Hardcover list")
	fmt.Println("  list-remove  Remove a linked book from a Hardcover list")
	fmt.Println("  version      Print version information")
	fmt.Printf("\nRun '%s <command> -h' for command options.\n", os.Args[0])
}
