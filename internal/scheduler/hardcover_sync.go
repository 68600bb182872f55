// Package scheduler runs periodic Hardcover sync rounds on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/hardcover-sync/internal/config"
	"github.com/mrlokans/hardcover-sync/internal/syncer"
	"github.com/mrlokans/hardcover-sync/internal/tasks"
)

// HardcoverSyncScheduler enqueues sync run tasks on a cron schedule. A
// scheduled round pushes local changes first, then pulls remote ones; the
// single task worker serializes the two runs.
type HardcoverSyncScheduler struct {
	cfg   *config.Config
	tasks *tasks.Client

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewHardcoverSyncScheduler creates a new scheduler instance.
func NewHardcoverSyncScheduler(cfg *config.Config, taskClient *tasks.Client) *HardcoverSyncScheduler {
	return &HardcoverSyncScheduler{
		cfg:   cfg,
		tasks: taskClient,
		cron:  cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if periodic sync is enabled.
func (s *HardcoverSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.cfg.Sync.Enabled {
		log.Printf("Hardcover sync scheduler: disabled")
		return nil
	}

	if s.cfg.Hardcover.Token == "" {
		log.Printf("Hardcover sync scheduler: token not configured, skipping")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.cfg.Sync.Schedule, func() {
		s.enqueueRound()
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Sync.Schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Hardcover sync scheduler: started with schedule '%s'. Next run: %v",
		s.cfg.Sync.Schedule, s.nextRunLocked())

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler.
func (s *HardcoverSyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Hardcover sync scheduler: stopped")
}

// RunNow enqueues a sync round immediately.
func (s *HardcoverSyncScheduler) RunNow() {
	s.enqueueRound()
}

// IsRunning returns whether the scheduler is active.
func (s *HardcoverSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next sync round will be enqueued.
func (s *HardcoverSyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	return s.nextRunLocked()
}

func (s *HardcoverSyncScheduler) nextRunLocked() *time.Time {
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// enqueueRound queues a push run followed by a pull run.
func (s *HardcoverSyncScheduler) enqueueRound() {
	round := []tasks.SyncRunTask{
		{Direction: string(syncer.DirectionToRemote)},
		{Direction: string(syncer.DirectionFromRemote)},
	}
	for _, task := range round {
		if _, err := s.tasks.Add(task).Save(); err != nil {
			log.Printf("Hardcover sync scheduler: failed to enqueue %s run: %v", task.Direction, err)
			return
		}
	}
	log.Printf("Hardcover sync scheduler: enqueued sync round (dry run: %v)", s.cfg.Sync.DryRun)
}
