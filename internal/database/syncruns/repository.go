// Package syncruns provides database operations for sync run progress
// tracking.
//
// One progress record exists per sync direction; the HTTP status endpoint
// reads it while a run executes.
//
// # Usage
//
//	repo := syncruns.NewRepository(db, entities.RunDirectionToRemote)
//	err := repo.StartRun(100, false)
package syncruns

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/hardcover-sync/internal/entities"
)

// Repository handles sync run progress database operations for one direction.
type Repository struct {
	db        *gorm.DB
	direction entities.RunDirection
}

// NewRepository creates a sync run repository for a direction.
func NewRepository(db *gorm.DB, direction entities.RunDirection) *Repository {
	return &Repository{db: db, direction: direction}
}

// GetRun retrieves the progress record for the configured direction.
func (r *Repository) GetRun() (*entities.SyncRun, error) {
	var run entities.SyncRun
	err := r.db.Where("direction = ?", r.direction).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetAllRuns retrieves the progress records of every direction.
func (r *Repository) GetAllRuns() ([]entities.SyncRun, error) {
	var runs []entities.SyncRun
	err := r.db.Order("direction ASC").Find(&runs).Error
	return runs, err
}

// StartRun creates or resets the progress record for a new run.
func (r *Repository) StartRun(totalBooks int, dryRun bool) error {
	var run entities.SyncRun
	result := r.db.Where("direction = ?", r.direction).First(&run)

	now := time.Now()
	if result.Error == gorm.ErrRecordNotFound {
		run = entities.SyncRun{
			Direction:  r.direction,
			Status:     entities.RunStatusRunning,
			DryRun:     dryRun,
			TotalBooks: totalBooks,
			StartedAt:  now,
			UpdatedAt:  now,
		}
		return r.db.Create(&run).Error
	} else if result.Error != nil {
		return result.Error
	}

	// Reset existing record
	run.Status = entities.RunStatusRunning
	run.DryRun = dryRun
	run.TotalBooks = totalBooks
	run.Processed = 0
	run.Succeeded = 0
	run.Failed = 0
	run.Skipped = 0
	run.CurrentBook = ""
	run.Error = ""
	run.StartedAt = now
	run.UpdatedAt = now
	run.CompletedAt = nil

	return r.db.Save(&run).Error
}

// UpdateProgress updates the counters of an ongoing run.
func (r *Repository) UpdateProgress(processed, succeeded, failed, skipped int, currentBook string) error {
	return r.db.Model(&entities.SyncRun{}).
		Where("direction = ?", r.direction).
		Updates(map[string]any{
			"processed":    processed,
			"succeeded":    succeeded,
			"failed":       failed,
			"skipped":      skipped,
			"current_book": currentBook,
			"updated_at":   time.Now(),
		}).Error
}

// CompleteRun marks a run as finished with the given terminal status.
func (r *Repository) CompleteRun(status entities.RunStatus, errorMsg string) error {
	now := time.Now()
	updates := map[string]any{
		"status":       status,
		"current_book": "",
		"updated_at":   now,
		"completed_at": now,
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}
	return r.db.Model(&entities.SyncRun{}).
		Where("direction = ?", r.direction).
		Updates(updates).Error
}

// IsRunning checks whether a run is in progress for the direction.
// A run not updated in 10 minutes is considered interrupted and is closed.
func (r *Repository) IsRunning() (bool, error) {
	var run entities.SyncRun
	err := r.db.Where("direction = ? AND status = ?", r.direction, entities.RunStatusRunning).First(&run).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	staleThreshold := time.Now().Add(-10 * time.Minute)
	if run.UpdatedAt.Before(staleThreshold) {
		_ = r.CompleteRun(entities.RunStatusFailed, "sync run was interrupted")
		return false, nil
	}

	return true, nil
}
