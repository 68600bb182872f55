package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
	"github.com/mrlokans/hardcover-sync/internal/syncer"
	"github.com/mrlokans/hardcover-sync/internal/tasks"
)

// SyncRunner drives interactive sync runs.
type SyncRunner interface {
	Start(ctx context.Context, direction syncer.Direction, bookIDs []uint) (*syncer.Run, error)
	Apply(ctx context.Context) error
	ActiveRun() *syncer.Run
	ResolveItem(ctx context.Context, bookID uint, candidate *hardcover.Book) error
	SkipItem(bookID uint) error
}

// RunStore reads persisted sync run progress.
type RunStore interface {
	GetAllRuns() ([]entities.SyncRun, error)
}

type SyncController struct {
	runner SyncRunner
	runs   RunStore
	tasks  *tasks.Client
}

func NewSyncController(runner SyncRunner, runs RunStore, taskClient *tasks.Client) *SyncController {
	return &SyncController{
		runner: runner,
		runs:   runs,
		tasks:  taskClient,
	}
}

// itemView is the serializable shape of one work item for preview responses.
// Candidates are only present for items awaiting a match choice.
type itemView struct {
	BookID     uint              `json:"book_id"`
	Title      string            `json:"title"`
	Status     syncer.ItemStatus `json:"status"`
	SkipReason string            `json:"skip_reason,omitempty"`
	Candidates []hardcover.Book  `json:"candidates,omitempty"`
	Changes    []syncer.Change   `json:"changes,omitempty"`
}

type runView struct {
	Direction syncer.Direction `json:"direction"`
	State     syncer.RunState  `json:"state"`
	Items     []itemView       `json:"items"`
	Failures  []string         `json:"failures,omitempty"`
}

// viewOf serializes a run from an item snapshot, so polling a run that is
// still resolving or applying observes a consistent copy.
func viewOf(run *syncer.Run) runView {
	view := runView{
		Direction: run.Direction(),
		State:     run.State(),
		Items:     []itemView{},
	}
	for _, item := range run.Snapshot() {
		iv := itemView{
			BookID:     item.Book.ID,
			Title:      item.Book.Title,
			Status:     item.Status,
			SkipReason: item.SkipReason,
			Candidates: item.Candidates,
		}
		if item.Changes != nil {
			iv.Changes = item.Changes.Changes
		}
		view.Items = append(view.Items, iv)
	}
	for _, failure := range run.Failures() {
		view.Failures = append(view.Failures, failure.Error())
	}
	return view
}

type runRequest struct {
	Direction string `json:"direction" binding:"required"`
	BookIDs   []uint `json:"book_ids"`
}

func parseDirection(raw string) (syncer.Direction, bool) {
	switch syncer.Direction(raw) {
	case syncer.DirectionToRemote, syncer.DirectionFromRemote:
		return syncer.Direction(raw), true
	}
	return "", false
}

// RunSync enqueues a non-interactive sync run on the task queue. Every
// computed change is applied without a preview step.
func (controller *SyncController) RunSync(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "direction is required"})
		return
	}
	direction, ok := parseDirection(req.Direction)
	if !ok {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "direction must be to_hardcover or from_hardcover"})
		return
	}

	if controller.tasks == nil {
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"error": "task queue is not enabled"})
		return
	}

	ids, err := controller.tasks.Add(tasks.SyncRunTask{
		Direction: string(direction),
		BookIDs:   req.BookIDs,
	}).Save()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.IndentedJSON(http.StatusAccepted, gin.H{
		"message":  "sync run queued",
		"task_ids": ids,
	})
}

// StartPreview begins an interactive run and returns the computed change
// sets. The run stays suspended until Apply or Cancel.
func (controller *SyncController) StartPreview(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "direction is required"})
		return
	}
	direction, ok := parseDirection(req.Direction)
	if !ok {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "direction must be to_hardcover or from_hardcover"})
		return
	}

	run, err := controller.runner.Start(c.Request.Context(), direction, req.BookIDs)
	if err != nil {
		if errors.Is(err, syncer.ErrRunInProgress) {
			c.IndentedJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if hardcover.IsUnauthorized(err) {
			c.IndentedJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.IndentedJSON(http.StatusOK, viewOf(run))
}

// GetPreview returns the current run, whatever its state.
func (controller *SyncController) GetPreview(c *gin.Context) {
	run := controller.runner.ActiveRun()
	if run == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "no active sync run"})
		return
	}
	c.IndentedJSON(http.StatusOK, viewOf(run))
}

type acceptRequest struct {
	BookID   uint   `json:"book_id" binding:"required"`
	Field    string `json:"field"`
	Accepted *bool  `json:"accepted" binding:"required"`
}

// Accept toggles a change checkbox. Without a field the whole book is
// toggled, mirroring the parent checkbox.
func (controller *SyncController) Accept(c *gin.Context) {
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "book_id and accepted are required"})
		return
	}

	run := controller.runner.ActiveRun()
	if run == nil || run.State() != syncer.StatePreviewPending {
		c.IndentedJSON(http.StatusConflict, gin.H{"error": "no run awaiting preview"})
		return
	}

	if req.Field == "" {
		run.SetBookAccepted(req.BookID, *req.Accepted)
	} else {
		run.SetAccepted(req.BookID, req.Field, *req.Accepted)
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "updated"})
}

type resolveRequest struct {
	BookID          uint `json:"book_id" binding:"required"`
	HardcoverBookID int  `json:"hardcover_book_id" binding:"required"`
}

// ResolveChoice picks one of a pending item's candidates and pulls the item
// back into the run.
func (controller *SyncController) ResolveChoice(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "book_id and hardcover_book_id are required"})
		return
	}

	run := controller.runner.ActiveRun()
	if run == nil {
		c.IndentedJSON(http.StatusConflict, gin.H{"error": "no active sync run"})
		return
	}

	var candidate *hardcover.Book
	for _, item := range run.Snapshot() {
		if item.Book.ID != req.BookID {
			continue
		}
		for i := range item.Candidates {
			if item.Candidates[i].ID == req.HardcoverBookID {
				candidate = &item.Candidates[i]
			}
		}
	}
	if candidate == nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "hardcover_book_id is not among the candidates"})
		return
	}

	if err := controller.runner.ResolveItem(c.Request.Context(), req.BookID, candidate); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, viewOf(run))
}

type skipRequest struct {
	BookID uint `json:"book_id" binding:"required"`
}

// Skip drops a book from the current run.
func (controller *SyncController) Skip(c *gin.Context) {
	var req skipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "book_id is required"})
		return
	}
	if err := controller.runner.SkipItem(req.BookID); err != nil {
		if errors.Is(err, syncer.ErrNoActiveRun) {
			c.IndentedJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "skipped"})
}

// Apply executes the accepted changes of the previewed run.
func (controller *SyncController) Apply(c *gin.Context) {
	run := controller.runner.ActiveRun()
	if run == nil || run.State() != syncer.StatePreviewPending {
		c.IndentedJSON(http.StatusConflict, gin.H{"error": "no run awaiting preview"})
		return
	}

	if err := controller.runner.Apply(c.Request.Context()); err != nil {
		if hardcover.IsUnauthorized(err) {
			c.IndentedJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, viewOf(run))
}

// Cancel requests cancellation of the current run; in-flight books finish
// before the run stops.
func (controller *SyncController) Cancel(c *gin.Context) {
	run := controller.runner.ActiveRun()
	if run == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "no active sync run"})
		return
	}
	run.Cancel()
	c.IndentedJSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

// GetStatus returns the persisted progress records of both directions plus
// the in-memory state of the current run, if any.
func (controller *SyncController) GetStatus(c *gin.Context) {
	response := gin.H{}

	if controller.runs != nil {
		runs, err := controller.runs.GetAllRuns()
		if err != nil {
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response["runs"] = runs
	}

	if run := controller.runner.ActiveRun(); run != nil {
		response["active"] = gin.H{
			"direction": run.Direction(),
			"state":     run.State(),
		}
	}

	c.IndentedJSON(http.StatusOK, response)
}
