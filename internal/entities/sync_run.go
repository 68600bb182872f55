package entities

import (
	"time"
)

type RunDirection string

const (
	RunDirectionToRemote   RunDirection = "to_hardcover"
	RunDirectionFromRemote RunDirection = "from_hardcover"
)

type RunStatus string

const (
	RunStatusRunning       RunStatus = "running"
	RunStatusCompleted     RunStatus = "completed"
	RunStatusFailedPartial RunStatus = "failed_partial"
	RunStatusCancelled     RunStatus = "cancelled"
	RunStatusFailed        RunStatus = "failed"
)

// SyncRun is the persisted progress record for a sync run, readable over the
// HTTP status endpoint while a run executes.
type SyncRun struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Direction   RunDirection `gorm:"size:20;uniqueIndex" json:"direction"`
	Status      RunStatus    `gorm:"size:20" json:"status"`
	DryRun      bool         `json:"dry_run"`
	TotalBooks  int          `json:"total_books"`
	Processed   int          `json:"processed"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	CurrentBook string       `gorm:"size:512" json:"current_book,omitempty"`
	Error       string       `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}
