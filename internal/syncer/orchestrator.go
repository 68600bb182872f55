package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/mrlokans/hardcover-sync/internal/database/books"
	"github.com/mrlokans/hardcover-sync/internal/database/links"
	"github.com/mrlokans/hardcover-sync/internal/database/syncruns"
	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
	"github.com/mrlokans/hardcover-sync/internal/matcher"
)

// ErrRunInProgress is returned when a run is started while another is still
// active. Overlapping runs are rejected, not queued.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// ErrNoActiveRun is returned by operations that need a run in flight.
var ErrNoActiveRun = errors.New("no active sync run")

// RunState is the orchestrator state machine position.
type RunState string

const (
	StateIdle           RunState = "idle"
	StateResolving      RunState = "resolving"
	StateDiffing        RunState = "diffing"
	StatePreviewPending RunState = "preview_pending"
	StateApplying       RunState = "applying"
	StateDone           RunState = "done"
	StateCancelled      RunState = "cancelled"
	// StateFailed marks a run that aborted before applying anything.
	StateFailed RunState = "failed"
	// StateFailedPartial marks an apply phase where some books failed;
	// the rest were applied.
	StateFailedPartial RunState = "failed_partial"
)

// ItemStatus tags a work item's resolution outcome.
type ItemStatus string

const (
	// ItemResolved items have a link and proceed through diff and apply.
	ItemResolved ItemStatus = "resolved"
	// ItemPendingChoice items need the user to pick among candidates.
	ItemPendingChoice ItemStatus = "pending_choice"
	// ItemSkipped items are excluded from the run (no match, no changes).
	ItemSkipped ItemStatus = "skipped"
)

// WorkItem is one book's passage through a run.
type WorkItem struct {
	Book       entities.Book
	Status     ItemStatus
	SkipReason string

	// Candidates is populated for pending-choice items.
	Candidates []hardcover.Book

	Link       *entities.Link
	Remote     *hardcover.UserBook
	TotalPages int
	Changes    *BookChanges
}

// BookError attributes a failure to a specific book.
type BookError struct {
	BookID uint
	Title  string
	Err    error
}

func (e BookError) Error() string {
	return fmt.Sprintf("%q: %v", e.Title, e.Err)
}

// Run holds the state of one sync run from start through its terminal state.
type Run struct {
	mu        sync.Mutex
	direction Direction
	state     RunState
	items     []*WorkItem
	failures  []BookError
	cancelled bool
}

func (r *Run) Direction() Direction { return r.direction }

func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Run) terminal() bool {
	switch r.State() {
	case StateDone, StateCancelled, StateFailed, StateFailedPartial:
		return true
	}
	return false
}

// Items returns the run's live work items. The slice is shared with the run
// goroutine; callers that may overlap a resolving or applying phase read
// through Snapshot instead.
func (r *Run) Items() []*WorkItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items
}

// Snapshot returns point-in-time copies of the work items, taken under the
// run lock. The copies share no mutable state with the run goroutine, so
// they are safe to serialize while the run is still in flight.
func (r *Run) Snapshot() []WorkItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WorkItem, len(r.items))
	for i, it := range r.items {
		item := *it
		item.Candidates = append([]hardcover.Book(nil), it.Candidates...)
		if it.Changes != nil {
			bc := *it.Changes
			bc.Changes = append([]Change(nil), it.Changes.Changes...)
			item.Changes = &bc
		}
		out[i] = item
	}
	return out
}

// Failures returns the per-book failures collected during apply.
func (r *Run) Failures() []BookError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BookError, len(r.failures))
	copy(out, r.failures)
	return out
}

func (r *Run) item(bookID uint) *WorkItem {
	for _, it := range r.items {
		if it.Book.ID == bookID {
			return it
		}
	}
	return nil
}

// SetAccepted toggles one field of one book's change set.
func (r *Run) SetAccepted(bookID uint, field string, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it := r.item(bookID); it != nil && it.Changes != nil {
		it.Changes.SetAccepted(field, accepted)
	}
}

// SetBookAccepted toggles every field of one book, the parent checkbox.
func (r *Run) SetBookAccepted(bookID uint, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it := r.item(bookID); it != nil && it.Changes != nil {
		it.Changes.SetAllAccepted(accepted)
	}
}

// Cancel requests cancellation; it takes effect at the next book boundary.
// Already-applied books are not rolled back.
func (r *Run) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
}

func (r *Run) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// markSkipped excludes a published item from the run.
func (r *Run) markSkipped(item *WorkItem, reason string) {
	r.mu.Lock()
	item.Status = ItemSkipped
	item.SkipReason = reason
	r.mu.Unlock()
}

// RemoteClient is the slice of the Hardcover client the orchestrator uses.
type RemoteClient interface {
	DryRun() bool
	GetBookByID(ctx context.Context, id int) (*hardcover.Book, error)
	GetUserBook(ctx context.Context, bookID int) (*hardcover.UserBook, error)
	GetUserBooksBySlugs(ctx context.Context, slugs []string) ([]hardcover.UserBook, error)
	AddBookToLibrary(ctx context.Context, bookID int, in hardcover.UserBookInput) (*hardcover.UserBook, error)
	UpdateUserBook(ctx context.Context, userBookID int, in hardcover.UserBookInput) (*hardcover.UserBook, error)
	InsertUserBookRead(ctx context.Context, userBookID int, in hardcover.ReadInput) (*hardcover.UserBookRead, error)
	UpdateUserBookRead(ctx context.Context, readID int, in hardcover.ReadInput) (*hardcover.UserBookRead, error)
}

// Resolver matches local records to remote books.
type Resolver interface {
	Resolve(ctx context.Context, book *entities.Book) (matcher.MatchResult, error)
	Accept(book *entities.Book, candidate *hardcover.Book) error
}

// Orchestrator drives sync runs: enumerate, resolve, diff, preview, apply.
// One run is active at a time; a run owns the link cache for its duration.
type Orchestrator struct {
	client RemoteClient
	engine *Engine
	match  Resolver
	books  *books.Repository
	links  *links.Repository
	runs   map[Direction]*syncruns.Repository

	mu     sync.Mutex
	active *Run
}

// NewOrchestrator wires the orchestrator. runRepos may be nil when persisted
// progress reporting is not needed (tests, one-shot CLI commands).
func NewOrchestrator(client RemoteClient, engine *Engine, match Resolver, bookRepo *books.Repository, linkRepo *links.Repository, runRepos map[Direction]*syncruns.Repository) *Orchestrator {
	return &Orchestrator{
		client: client,
		engine: engine,
		match:  match,
		books:  bookRepo,
		links:  linkRepo,
		runs:   runRepos,
	}
}

// ActiveRun returns the current run, or nil.
func (o *Orchestrator) ActiveRun() *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Start begins a run over the given selection (nil means the whole library)
// and carries it through resolving and diffing to PreviewPending.
func (o *Orchestrator) Start(ctx context.Context, direction Direction, bookIDs []uint) (*Run, error) {
	o.mu.Lock()
	if o.active != nil && !o.active.terminal() {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	run := &Run{direction: direction, state: StateIdle}
	o.active = run
	o.mu.Unlock()

	selection, err := o.enumerate(bookIDs)
	if err != nil {
		run.setState(StateFailed)
		return nil, err
	}

	if repo := o.runs[direction]; repo != nil {
		if err := repo.StartRun(len(selection), o.client.DryRun()); err != nil {
			log.Printf("Failed to record run start: %v", err)
		}
	}

	run.setState(StateResolving)
	for i := range selection {
		if err := ctx.Err(); err != nil {
			run.setState(StateCancelled)
			return run, err
		}
		item := &WorkItem{Book: selection[i]}
		if err := o.resolveItem(ctx, item); err != nil {
			if hardcover.IsUnauthorized(err) {
				run.setState(StateFailed)
				o.completeRun(o.runs[direction], entities.RunStatusFailed, err.Error())
				return run, err
			}
			item.Status = ItemSkipped
			item.SkipReason = err.Error()
		}
		run.mu.Lock()
		run.items = append(run.items, item)
		run.mu.Unlock()
	}

	run.setState(StateDiffing)
	prefetched := o.prefetchUserBooks(ctx, run, direction)
	for _, item := range run.Items() {
		if err := ctx.Err(); err != nil {
			run.setState(StateCancelled)
			return run, err
		}
		if item.Status != ItemResolved {
			continue
		}
		if err := o.diffItem(ctx, run, item, direction, prefetched); err != nil {
			if hardcover.IsUnauthorized(err) {
				run.setState(StateFailed)
				o.completeRun(o.runs[direction], entities.RunStatusFailed, err.Error())
				return run, err
			}
			run.markSkipped(item, err.Error())
		}
	}

	run.setState(StatePreviewPending)
	return run, nil
}

func (o *Orchestrator) enumerate(bookIDs []uint) ([]entities.Book, error) {
	if len(bookIDs) == 0 {
		return o.books.GetAllBooks()
	}
	return o.books.GetBooksByIDs(bookIDs)
}

// resolveItem attaches a link to the item, consulting the cache first and
// the matcher for unlinked books.
func (o *Orchestrator) resolveItem(ctx context.Context, item *WorkItem) error {
	link, err := o.links.Get(item.Book.ID)
	if err != nil {
		return err
	}
	if link != nil {
		item.Link = link
		item.Status = ItemResolved
		return nil
	}

	result, err := o.match.Resolve(ctx, &item.Book)
	if err != nil {
		return err
	}

	switch result.Kind {
	case matcher.Unambiguous:
		if err := o.match.Accept(&item.Book, result.Book()); err != nil {
			return err
		}
		link, err = o.links.Get(item.Book.ID)
		if err != nil {
			return err
		}
		item.Link = link
		item.Status = ItemResolved
	case matcher.Ambiguous:
		item.Status = ItemPendingChoice
		item.Candidates = result.Candidates
	default:
		item.Status = ItemSkipped
		item.SkipReason = "no match found"
	}
	return nil
}

// prefetchUserBooks batch-loads the remote entries of every resolved item
// before a pull run, so diffing does not issue one query per book. A failed
// prefetch degrades to per-book fetches.
func (o *Orchestrator) prefetchUserBooks(ctx context.Context, run *Run, direction Direction) map[int]*hardcover.UserBook {
	if direction != DirectionFromRemote {
		return nil
	}

	var slugs []string
	for _, item := range run.Items() {
		if item.Status == ItemResolved && item.Link.HardcoverSlug != "" {
			slugs = append(slugs, item.Link.HardcoverSlug)
		}
	}
	if len(slugs) == 0 {
		return nil
	}

	userBooks, err := o.client.GetUserBooksBySlugs(ctx, slugs)
	if err != nil {
		log.Printf("Batch lookup failed, falling back to per-book fetches: %v", err)
		return nil
	}

	byBookID := make(map[int]*hardcover.UserBook, len(userBooks))
	for i := range userBooks {
		byBookID[userBooks[i].BookID] = &userBooks[i]
	}
	return byBookID
}

// diffItem fetches remote state and computes the item's change set. Items
// with no changes drop out of the preview. Remote calls run outside the run
// lock; the item is only written under it, since the run may be polled over
// HTTP while diffing.
func (o *Orchestrator) diffItem(ctx context.Context, run *Run, item *WorkItem, direction Direction, prefetched map[int]*hardcover.UserBook) error {
	var remote *hardcover.UserBook
	var err error
	if prefetched != nil && item.Link.HardcoverSlug != "" {
		remote = prefetched[item.Link.HardcoverBookID]
	} else {
		remote, err = o.client.GetUserBook(ctx, item.Link.HardcoverBookID)
		if err != nil {
			return err
		}
	}
	totalPages, err := o.totalPages(ctx, item)
	if err != nil {
		return err
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	item.Remote = remote
	item.TotalPages = totalPages

	if direction == DirectionToRemote {
		item.Changes = o.engine.ChangesToRemote(&item.Book, remote, totalPages, item.Link.SnapshotMap())
	} else {
		if remote != nil && !o.engine.pullStatusAllowed(remote.StatusID) {
			item.Status = ItemSkipped
			item.SkipReason = "remote status excluded by configuration"
			return nil
		}
		item.Changes = o.engine.ChangesFromRemote(&item.Book, remote, totalPages)
	}

	if item.Changes.Empty() {
		item.Status = ItemSkipped
		item.SkipReason = "no changes"
		return nil
	}
	item.Changes.SetAllAccepted(true)
	return nil
}

// totalPages resolves the page count of the linked edition, falling back to
// the book's first edition with a page count.
func (o *Orchestrator) totalPages(ctx context.Context, item *WorkItem) (int, error) {
	book, err := o.client.GetBookByID(ctx, item.Link.HardcoverBookID)
	if err != nil {
		return 0, err
	}
	if book == nil {
		return 0, nil
	}
	if item.Link.EditionID != 0 {
		for _, ed := range book.Editions {
			if ed.ID == item.Link.EditionID && ed.Pages > 0 {
				return ed.Pages, nil
			}
		}
	}
	return book.TotalPages(), nil
}

// ResolveItem resumes a pending-choice item with the chosen candidate and
// re-enters the pipeline for just that item.
func (o *Orchestrator) ResolveItem(ctx context.Context, bookID uint, candidate *hardcover.Book) error {
	run := o.ActiveRun()
	if run == nil || run.State() != StatePreviewPending {
		return ErrNoActiveRun
	}

	run.mu.Lock()
	item := run.item(bookID)
	pending := item != nil && item.Status == ItemPendingChoice
	run.mu.Unlock()
	if !pending {
		return fmt.Errorf("book %d has no pending choice", bookID)
	}

	if err := o.match.Accept(&item.Book, candidate); err != nil {
		return err
	}
	link, err := o.links.Get(bookID)
	if err != nil {
		return err
	}
	run.mu.Lock()
	item.Link = link
	item.Candidates = nil
	item.Status = ItemResolved
	run.mu.Unlock()
	return o.diffItem(ctx, run, item, run.direction, nil)
}

// SkipItem excludes a pending-choice item from the run.
func (o *Orchestrator) SkipItem(bookID uint) error {
	run := o.ActiveRun()
	if run == nil {
		return ErrNoActiveRun
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	item := run.item(bookID)
	if item == nil {
		return fmt.Errorf("book %d is not part of the run", bookID)
	}
	item.Status = ItemSkipped
	item.SkipReason = "skipped by user"
	return nil
}

// Apply processes accepted changes book-by-book. A failing book is recorded
// and skipped without aborting the run; cancellation is honored at book
// boundaries only. The terminal state is Done, Cancelled, or FailedPartial.
func (o *Orchestrator) Apply(ctx context.Context) error {
	run := o.ActiveRun()
	if run == nil || run.State() != StatePreviewPending {
		return ErrNoActiveRun
	}
	run.setState(StateApplying)

	repo := o.runs[run.direction]
	processed, succeeded, failed, skipped := 0, 0, 0, 0

	for _, item := range run.Items() {
		if run.isCancelled() || ctx.Err() != nil {
			run.setState(StateCancelled)
			o.completeRun(repo, entities.RunStatusCancelled, "")
			return nil
		}

		run.mu.Lock()
		ready := item.Status == ItemResolved && item.Changes != nil && item.Changes.AnyAccepted()
		run.mu.Unlock()
		if !ready {
			skipped++
			continue
		}

		processed++
		o.reportProgress(repo, processed, succeeded, failed, skipped, item.Book.Title)

		var err error
		if run.direction == DirectionToRemote {
			err = o.applyToRemote(ctx, run, item)
		} else {
			err = o.applyFromRemote(run, item)
		}
		if err != nil {
			failed++
			run.mu.Lock()
			run.failures = append(run.failures, BookError{BookID: item.Book.ID, Title: item.Book.Title, Err: err})
			run.mu.Unlock()
			log.Printf("Sync failed for %q: %v", item.Book.Title, err)
			if hardcover.IsUnauthorized(err) {
				run.setState(StateFailedPartial)
				o.completeRun(repo, entities.RunStatusFailed, err.Error())
				return err
			}
			continue
		}
		succeeded++

		if err := o.updateSnapshot(item); err != nil {
			log.Printf("Snapshot update failed for %q: %v", item.Book.Title, err)
		}
	}

	o.reportProgress(repo, processed, succeeded, failed, skipped, "")
	if len(run.Failures()) > 0 {
		run.setState(StateFailedPartial)
		o.completeRun(repo, entities.RunStatusFailedPartial, fmt.Sprintf("%d books failed", failed))
		return nil
	}
	run.setState(StateDone)
	o.completeRun(repo, entities.RunStatusCompleted, "")
	return nil
}

func (o *Orchestrator) reportProgress(repo *syncruns.Repository, processed, succeeded, failed, skipped int, current string) {
	if repo == nil {
		return
	}
	if err := repo.UpdateProgress(processed, succeeded, failed, skipped, current); err != nil {
		log.Printf("Failed to record run progress: %v", err)
	}
}

func (o *Orchestrator) completeRun(repo *syncruns.Repository, status entities.RunStatus, msg string) {
	if repo == nil {
		return
	}
	if err := repo.CompleteRun(status, msg); err != nil {
		log.Printf("Failed to record run completion: %v", err)
	}
}

// applyToRemote sends the accepted changes as Hardcover mutations. Entry
// fields (status, rating, review) and the current read (dates, progress) are
// mutated separately, matching the remote data model.
func (o *Orchestrator) applyToRemote(ctx context.Context, run *Run, item *WorkItem) error {
	run.mu.Lock()
	accepted := item.Changes.AcceptedChanges()
	run.mu.Unlock()

	var entry hardcover.UserBookInput
	var read hardcover.ReadInput
	entryDirty, readDirty := false, false

	for _, c := range accepted {
		switch c.Field {
		case FieldStatus:
			if id, ok := statusID(c.New); ok {
				entry.StatusID = &id
				entryDirty = true
			}
		case FieldRating:
			if v, ok := parseNumber(c.New); ok {
				rating := v
				entry.Rating = &rating
				entryDirty = true
			}
		case FieldReview:
			review := c.New
			entry.Review = &review
			entryDirty = true
		case FieldDateStarted:
			entry.StartedAt = c.New
			read.StartedAt = c.New
			entryDirty, readDirty = true, true
		case FieldDateFinished:
			entry.FinishedAt = c.New
			read.FinishedAt = c.New
			entryDirty, readDirty = true, true
		case FieldProgressPages:
			if v, err := strconv.Atoi(c.New); err == nil {
				pages := v
				read.ProgressPages = &pages
				readDirty = true
			}
		case FieldProgressPercent:
			if v, ok := parseNumber(c.New); ok {
				fraction := v / 100
				read.Progress = &fraction
				readDirty = true
			}
		}
	}
	if item.Link.EditionID != 0 {
		entry.EditionID = item.Link.EditionID
		read.EditionID = item.Link.EditionID
	}

	remote := item.Remote
	if remote == nil {
		created, err := o.client.AddBookToLibrary(ctx, item.Link.HardcoverBookID, entry)
		if err != nil {
			return err
		}
		remote = created
		run.mu.Lock()
		item.Remote = created
		run.mu.Unlock()
	} else if entryDirty {
		if _, err := o.client.UpdateUserBook(ctx, remote.ID, entry); err != nil {
			return err
		}
	}

	if readDirty {
		if current := remote.CurrentRead(); current != nil && current.ID > 0 {
			if _, err := o.client.UpdateUserBookRead(ctx, current.ID, read); err != nil {
				return err
			}
		} else {
			if _, err := o.client.InsertUserBookRead(ctx, remote.ID, read); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyFromRemote writes the accepted changes into the local record's custom
// fields. Dry-run leaves the record untouched.
func (o *Orchestrator) applyFromRemote(run *Run, item *WorkItem) error {
	if o.client.DryRun() {
		return nil
	}
	run.mu.Lock()
	accepted := item.Changes.AcceptedChanges()
	run.mu.Unlock()
	for _, c := range accepted {
		name := o.engine.localFieldName(c.Field)
		if name == "" {
			continue
		}
		if err := o.books.SetField(item.Book.ID, name, c.New); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}
	return nil
}

// updateSnapshot overwrites the link snapshot with the record's post-apply
// values. In dry-run mode the snapshot is left untouched.
func (o *Orchestrator) updateSnapshot(item *WorkItem) error {
	if o.client.DryRun() {
		return nil
	}
	fresh, err := o.books.GetBookByID(item.Book.ID)
	if err != nil {
		return err
	}
	return o.links.UpdateSnapshot(item.Book.ID, o.engine.SnapshotValues(fresh))
}
