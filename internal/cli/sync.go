package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mrlokans/hardcover-sync/internal/database/syncruns"
	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/matcher"
	"github.com/mrlokans/hardcover-sync/internal/syncer"
)

// SyncCommand runs one interactive sync in a fixed direction. The preview is
// printed, ambiguous matches are resolved at the prompt, and nothing is
// applied without confirmation unless -yes is given.
type SyncCommand struct {
	name      string
	direction syncer.Direction

	DatabasePath string
	DryRun       bool
	Yes          bool
	BookID       uint

	in *bufio.Reader
}

// NewSyncToCommand creates the push command (local changes to Hardcover).
func NewSyncToCommand() *SyncCommand {
	return &SyncCommand{name: "sync-to", direction: syncer.DirectionToRemote, in: bufio.NewReader(os.Stdin)}
}

// NewSyncFromCommand creates the pull command (Hardcover changes to local).
func NewSyncFromCommand() *SyncCommand {
	return &SyncCommand{name: "sync-from", direction: syncer.DirectionFromRemote, in: bufio.NewReader(os.Stdin)}
}

// ParseFlags parses command line flags
func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet(cmd.name, flag.ExitOnError)

	var bookID uint64
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database file")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Report changes without applying them")
	fs.BoolVar(&cmd.Yes, "yes", false, "Apply all changes without confirmation")
	fs.Uint64Var(&bookID, "book", 0, "Sync only this local book id")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s [options]\n\n", os.Args[0], cmd.name)
		if cmd.direction == syncer.DirectionToRemote {
			fmt.Fprintf(os.Stderr, "Push local reading progress to Hardcover.\n\n")
		} else {
			fmt.Fprintf(os.Stderr, "Pull reading progress from Hardcover into the local library.\n\n")
		}
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s %s -dry-run\n", os.Args[0], cmd.name)
		fmt.Fprintf(os.Stderr, "  %s %s -yes\n", os.Args[0], cmd.name)
		fmt.Fprintf(os.Stderr, "  %s %s -book 42\n", os.Args[0], cmd.name)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.BookID = uint(bookID)
	return nil
}

// Run executes the sync command
func (cmd *SyncCommand) Run() error {
	if cmd.direction == syncer.DirectionToRemote {
		fmt.Println("📤 Sync to Hardcover")
		fmt.Println("====================")
	} else {
		fmt.Println("📥 Sync from Hardcover")
		fmt.Println("======================")
	}
	if cmd.DryRun {
		fmt.Println("🔍 Dry run: nothing will be written")
	}

	env, err := openStack(cmd.DatabasePath, cmd.DryRun)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.requireToken(); err != nil {
		return err
	}

	runRepos := map[syncer.Direction]*syncruns.Repository{
		syncer.DirectionToRemote:   syncruns.NewRepository(env.db.DB, entities.RunDirectionToRemote),
		syncer.DirectionFromRemote: syncruns.NewRepository(env.db.DB, entities.RunDirectionFromRemote),
	}
	orch := syncer.NewOrchestrator(
		env.client,
		syncer.NewEngine(env.cfg),
		matcher.NewMatcher(env.client, env.links),
		env.books,
		env.links,
		runRepos,
	)

	var selection []uint
	if cmd.BookID != 0 {
		selection = []uint{cmd.BookID}
	}

	ctx := context.Background()
	run, err := orch.Start(ctx, cmd.direction, selection)
	if err != nil {
		return fmt.Errorf("failed to compute changes: %w", err)
	}

	if err := cmd.resolvePending(ctx, orch, run); err != nil {
		return err
	}

	total := cmd.printPreview(run)
	if total == 0 {
		fmt.Println("\n✅ Everything is in sync")
		_ = orch.Apply(ctx)
		return nil
	}

	if !cmd.Yes && !cmd.DryRun {
		if !cmd.confirm(fmt.Sprintf("\nApply %d changes? [y/N] ", total)) {
			fmt.Println("🚫 Aborted, nothing was applied")
			run.Cancel()
			_ = orch.Apply(ctx)
			return nil
		}
	}

	if err := orch.Apply(ctx); err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}

	cmd.printOutcome(env, run)
	return nil
}

// resolvePending walks the items that need a match choice and asks the user
// to pick a candidate or skip.
func (cmd *SyncCommand) resolvePending(ctx context.Context, orch *syncer.Orchestrator, run *syncer.Run) error {
	for _, item := range run.Items() {
		if item.Status != syncer.ItemPendingChoice {
			continue
		}

		if cmd.Yes {
			// Non-interactive mode never guesses among candidates.
			if err := orch.SkipItem(item.Book.ID); err != nil {
				return err
			}
			continue
		}

		fmt.Printf("\n❓ %q matches %d books:\n", item.Book.Title, len(item.Candidates))
		for i, c := range item.Candidates {
			fmt.Printf("  %d. %s by %s (%s)\n", i+1, c.Title, c.AuthorNames(), c.Slug)
		}
		fmt.Print("Pick a number, or press Enter to skip: ")

		line, err := cmd.in.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if err := orch.SkipItem(item.Book.ID); err != nil {
				return err
			}
			continue
		}

		choice, err := strconv.Atoi(line)
		if err != nil || choice < 1 || choice > len(item.Candidates) {
			fmt.Println("⚠️  Invalid choice, skipping")
			if err := orch.SkipItem(item.Book.ID); err != nil {
				return err
			}
			continue
		}
		if err := orch.ResolveItem(ctx, item.Book.ID, &item.Candidates[choice-1]); err != nil {
			return fmt.Errorf("failed to link %q: %w", item.Book.Title, err)
		}
	}
	return nil
}

// printPreview renders the change sets and returns the number of changes.
func (cmd *SyncCommand) printPreview(run *syncer.Run) int {
	total := 0
	for _, item := range run.Items() {
		if item.Status != syncer.ItemResolved || item.Changes == nil || item.Changes.Empty() {
			continue
		}
		fmt.Printf("\n📖 %s\n", item.Book.Title)
		for _, c := range item.Changes.Changes {
			old := c.Old
			if old == "" {
				old = "(empty)"
			}
			suffix := ""
			if c.Truncated {
				suffix = " (truncated)"
			}
			fmt.Printf("  %s: %s → %s%s\n", c.Field, old, c.New, suffix)
			total++
		}
	}
	return total
}

func (cmd *SyncCommand) confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := cmd.in.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (cmd *SyncCommand) printOutcome(env *stack, run *syncer.Run) {
	applied, skipped := 0, 0
	for _, item := range run.Items() {
		switch item.Status {
		case syncer.ItemResolved:
			applied++
		default:
			skipped++
		}
	}

	switch run.State() {
	case syncer.StateDone:
		fmt.Printf("\n✅ Sync complete: %d books updated, %d skipped\n", applied, skipped)
	case syncer.StateCancelled:
		fmt.Println("\n🚫 Sync cancelled")
	default:
		fmt.Printf("\n⚠️  Sync finished with errors (%d books updated):\n", applied-len(run.Failures()))
		for _, failure := range run.Failures() {
			fmt.Printf("  ❌ %s\n", failure.Error())
		}
	}

	if cmd.DryRun && cmd.direction == syncer.DirectionToRemote {
		entries := env.client.DryRunLog()
		fmt.Printf("🔍 Dry run: %d mutations were recorded, none sent\n", len(entries))
	}
}
