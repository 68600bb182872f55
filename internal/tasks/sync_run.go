package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/hardcover-sync/internal/syncer"
)

// SyncRunTask executes one sync run in the given direction. Scheduled runs
// have no interactive preview: every computed change is applied as-is, and
// books needing a manual match choice are left for the next interactive run.
type SyncRunTask struct {
	Direction string `json:"direction"`

	// BookIDs optionally restricts the run to a selection (empty = whole
	// library).
	BookIDs []uint `json:"book_ids,omitempty"`
}

// Config returns the queue configuration for sync run tasks.
func (t SyncRunTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "hardcover_sync_run",
		MaxAttempts: 1, // reruns come from the schedule, not the queue
		Backoff:     time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SyncRunProcessor creates a processor function for SyncRunTask.
func SyncRunProcessor(orch *syncer.Orchestrator) backlite.QueueProcessor[SyncRunTask] {
	return func(ctx context.Context, task SyncRunTask) error {
		if orch == nil {
			return fmt.Errorf("orchestrator not configured")
		}

		direction := syncer.Direction(task.Direction)
		run, err := orch.Start(ctx, direction, task.BookIDs)
		if err != nil {
			if errors.Is(err, syncer.ErrRunInProgress) {
				log.Printf("[TASK] Sync run skipped: another run is in progress")
				return nil
			}
			return fmt.Errorf("start sync run: %w", err)
		}

		if err := orch.Apply(ctx); err != nil {
			return fmt.Errorf("apply sync run: %w", err)
		}

		applied, skipped, pending := 0, 0, 0
		for _, item := range run.Items() {
			switch item.Status {
			case syncer.ItemResolved:
				applied++
			case syncer.ItemPendingChoice:
				pending++
			default:
				skipped++
			}
		}
		log.Printf("[TASK] Sync run (%s) finished in state %s: %d applied, %d skipped, %d need manual matching, %d failed",
			task.Direction, run.State(), applied, skipped, pending, len(run.Failures()))
		return nil
	}
}

// NewSyncRunQueue creates a backlite queue for sync run tasks.
func NewSyncRunQueue(orch *syncer.Orchestrator) backlite.Queue {
	return backlite.NewQueue(SyncRunProcessor(orch))
}
