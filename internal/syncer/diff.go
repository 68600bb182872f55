// Package syncer implements the reconciliation engine between the local
// library and Hardcover: field-level diffing, the run orchestrator, and list
// membership.
package syncer

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mrlokans/hardcover-sync/internal/config"
	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
)

// Engine computes field-level changes between a local record and the remote
// user book entry. It holds the role-to-field mapping and the per-role sync
// toggles, resolved once per run.
type Engine struct {
	fields       config.FieldMap
	sync         config.Sync
	reviewMaxLen int
}

// NewEngine creates a diff engine from configuration.
func NewEngine(cfg *config.Config) *Engine {
	maxLen := cfg.Hardcover.ReviewMaxLen
	if maxLen <= 0 {
		maxLen = config.DefaultReviewMaxLen
	}
	return &Engine{
		fields:       cfg.FieldMap,
		sync:         cfg.Sync,
		reviewMaxLen: maxLen,
	}
}

// localFieldName returns the local custom field bound to a role, or "" when
// the role is not synced.
func (e *Engine) localFieldName(role string) string {
	switch role {
	case FieldStatus:
		return e.fields.Status
	case FieldRating:
		if !e.sync.Rating {
			return ""
		}
		return e.fields.Rating
	case FieldProgressPages:
		if !e.sync.Progress {
			return ""
		}
		return e.fields.ProgressPages
	case FieldProgressPercent:
		if !e.sync.Progress {
			return ""
		}
		return e.fields.ProgressPercent
	case FieldDateStarted:
		if !e.sync.Dates {
			return ""
		}
		return e.fields.DateStarted
	case FieldDateFinished:
		if !e.sync.Dates {
			return ""
		}
		return e.fields.DateFinished
	case FieldReview:
		if !e.sync.Review {
			return ""
		}
		return e.fields.Review
	case FieldIsRead:
		return e.fields.IsRead
	}
	return ""
}

// pullStatusAllowed reports whether a remote status is in the configured
// pull set. An empty set allows every status.
func (e *Engine) pullStatusAllowed(statusID int) bool {
	if len(e.sync.Statuses) == 0 {
		return true
	}
	for _, id := range e.sync.Statuses {
		if id == statusID {
			return true
		}
	}
	return false
}

// LocalValues extracts the local record's value per sync role. Roles with no
// bound field, or whose field is unset on the record, are absent.
func (e *Engine) LocalValues(book *entities.Book) map[string]string {
	byName := make(map[string]string, len(book.Fields))
	for _, f := range book.Fields {
		byName[f.Name] = f.Value
	}

	values := map[string]string{}
	for role := range fieldOrder {
		name := e.localFieldName(role)
		if name == "" {
			continue
		}
		if v, ok := byName[name]; ok && strings.TrimSpace(v) != "" {
			values[role] = strings.TrimSpace(v)
		}
	}
	return values
}

// ChangesToRemote computes what pushing this book would mutate. remote is
// nil when the book is not yet in the user's Hardcover library; totalPages
// comes from the linked edition and gates pages/percent conversion. Old and
// New values use the remote representation (rating on the 0-5 scale).
func (e *Engine) ChangesToRemote(book *entities.Book, remote *hardcover.UserBook, totalPages int, snapshot map[string]string) *BookChanges {
	local := e.LocalValues(book)
	bc := &BookChanges{BookID: book.ID, Title: book.Title}

	var read *hardcover.UserBookRead
	if remote != nil {
		read = remote.CurrentRead()
	}

	// Status
	if v, ok := local[FieldStatus]; ok {
		if id, known := statusID(v); known {
			oldName := ""
			if remote != nil && remote.StatusID != 0 {
				oldName = hardcover.StatusNames[remote.StatusID]
			}
			newName := hardcover.StatusNames[id]
			if !strings.EqualFold(oldName, newName) {
				bc.Changes = append(bc.Changes, Change{
					Field: FieldStatus, Old: oldName, New: newName, Direction: DirectionToRemote,
				})
			}
		}
	}

	// Rating: local half-star 0-10 scale maps onto the remote 0-5 scale.
	if v, ok := local[FieldRating]; ok {
		if localRating, okNum := parseNumber(v); okNum {
			newRating := localRating / 2
			oldStr := ""
			if remote != nil && remote.Rating != nil {
				oldStr = formatNumber(*remote.Rating)
			}
			newStr := formatNumber(newRating)
			if !equalNumeric(oldStr, newStr) {
				bc.Changes = append(bc.Changes, Change{
					Field: FieldRating, Old: oldStr, New: newStr, Direction: DirectionToRemote,
				})
			}
		}
	}

	// Dates: compared at date granularity.
	for _, role := range []string{FieldDateStarted, FieldDateFinished} {
		v, ok := local[role]
		if !ok {
			continue
		}
		newDate := normalizeDate(v)
		if newDate == "" {
			continue
		}
		oldDate := ""
		if read != nil {
			if role == FieldDateStarted {
				oldDate = normalizeDate(read.StartedAt)
			} else {
				oldDate = normalizeDate(read.FinishedAt)
			}
		}
		if oldDate != newDate {
			bc.Changes = append(bc.Changes, Change{
				Field: role, Old: oldDate, New: newDate, Direction: DirectionToRemote,
			})
		}
	}

	e.progressToRemote(bc, local, read, totalPages, snapshot)

	// Review: pushed raw, truncated to the remote limit.
	if v, ok := local[FieldReview]; ok {
		newReview := v
		truncated := false
		if len(newReview) > e.reviewMaxLen {
			newReview = truncateReview(newReview, e.reviewMaxLen)
			truncated = true
		}
		oldReview := ""
		if remote != nil {
			oldReview = remote.Review
		}
		if oldReview != newReview {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldReview, Old: oldReview, New: newReview,
				Direction: DirectionToRemote, Truncated: truncated,
			})
		}
	}

	// is_read is a projection of status and is never pushed.

	bc.Changes = sortChanges(bc.Changes)
	return bc
}

// progressToRemote emits pages/percent changes for a push. Pages are the
// source of truth when both local fields are set, unless the snapshot shows
// that only the percent field moved since the last apply.
func (e *Engine) progressToRemote(bc *BookChanges, local map[string]string, read *hardcover.UserBookRead, totalPages int, snapshot map[string]string) {
	pagesStr, hasPages := local[FieldProgressPages]
	pctStr, hasPct := local[FieldProgressPercent]
	if !hasPages && !hasPct {
		return
	}

	pagesSource := hasPages
	if hasPages && hasPct && snapshot != nil {
		pagesMoved := !equalNumeric(pagesStr, snapshot[FieldProgressPages])
		pctMoved := !equalNumeric(pctStr, snapshot[FieldProgressPercent])
		if !pagesMoved && pctMoved {
			pagesSource = false
		}
	}

	var oldPages, oldPct string
	if read != nil {
		if read.ProgressPages != nil {
			oldPages = strconv.Itoa(*read.ProgressPages)
		}
		if pct := read.ProgressPercent(); pct != nil {
			oldPct = formatNumber(round1(*pct))
		}
	}

	if pagesSource {
		pages, ok := parseNumber(pagesStr)
		if !ok {
			return
		}
		newPages := strconv.Itoa(int(math.Round(pages)))
		if !equalNumeric(oldPages, newPages) {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldProgressPages, Old: oldPages, New: newPages, Direction: DirectionToRemote,
			})
		}
		if totalPages > 0 {
			newPct := formatNumber(round1(pages / float64(totalPages) * 100))
			if !equalNumeric(oldPct, newPct) {
				bc.Changes = append(bc.Changes, Change{
					Field: FieldProgressPercent, Old: oldPct, New: newPct, Direction: DirectionToRemote,
				})
			}
		}
		return
	}

	pct, ok := parseNumber(pctStr)
	if !ok {
		return
	}
	newPct := formatNumber(round1(pct))
	if !equalNumeric(oldPct, newPct) {
		bc.Changes = append(bc.Changes, Change{
			Field: FieldProgressPercent, Old: oldPct, New: newPct, Direction: DirectionToRemote,
		})
	}
	if totalPages > 0 && hasPages {
		newPages := strconv.Itoa(int(math.Round(pct / 100 * float64(totalPages))))
		if !equalNumeric(oldPages, newPages) {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldProgressPages, Old: oldPages, New: newPages, Direction: DirectionToRemote,
			})
		}
	}
}

// ChangesFromRemote computes what pulling this book would write locally.
// Old and New values use the local representation (rating on the 0-10
// scale). Only the current read event's dates and progress are surfaced.
func (e *Engine) ChangesFromRemote(book *entities.Book, remote *hardcover.UserBook, totalPages int) *BookChanges {
	local := e.LocalValues(book)
	bc := &BookChanges{BookID: book.ID, Title: book.Title}
	if remote == nil {
		return bc
	}

	read := remote.CurrentRead()

	// Status
	if e.localFieldName(FieldStatus) != "" && remote.StatusID != 0 {
		newName := hardcover.StatusNames[remote.StatusID]
		if !strings.EqualFold(local[FieldStatus], newName) {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldStatus, Old: local[FieldStatus], New: newName, Direction: DirectionFromRemote,
			})
		}
	}

	// Rating: remote 0-5 scale doubles onto the local half-star scale.
	if e.localFieldName(FieldRating) != "" && remote.Rating != nil {
		newStr := formatNumber(*remote.Rating * 2)
		if !equalNumeric(local[FieldRating], newStr) {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldRating, Old: local[FieldRating], New: newStr, Direction: DirectionFromRemote,
			})
		}
	}

	// Dates from the current read only.
	if read != nil {
		for _, role := range []string{FieldDateStarted, FieldDateFinished} {
			if e.localFieldName(role) == "" {
				continue
			}
			src := read.StartedAt
			if role == FieldDateFinished {
				src = read.FinishedAt
			}
			newDate := normalizeDate(src)
			if newDate == "" {
				continue
			}
			if normalizeDate(local[role]) != newDate {
				bc.Changes = append(bc.Changes, Change{
					Field: role, Old: local[role], New: newDate, Direction: DirectionFromRemote,
				})
			}
		}
	}

	e.progressFromRemote(bc, local, read, totalPages)

	// Review
	if e.localFieldName(FieldReview) != "" && remote.Review != "" {
		if local[FieldReview] != remote.Review {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldReview, Old: local[FieldReview], New: remote.Review, Direction: DirectionFromRemote,
			})
		}
	}

	// is_read is a pull-only projection of status.
	if e.localFieldName(FieldIsRead) != "" && remote.StatusID != 0 {
		newVal := "false"
		if remote.StatusID == hardcover.StatusRead {
			newVal = "true"
		}
		if normalizeBool(local[FieldIsRead]) != newVal {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldIsRead, Old: local[FieldIsRead], New: newVal, Direction: DirectionFromRemote,
			})
		}
	}

	bc.Changes = sortChanges(bc.Changes)
	return bc
}

// progressFromRemote populates whichever local progress fields are
// configured, converting between pages and percent when the edition's page
// count is known.
func (e *Engine) progressFromRemote(bc *BookChanges, local map[string]string, read *hardcover.UserBookRead, totalPages int) {
	if read == nil {
		return
	}

	var pages *int
	var pct *float64
	if read.ProgressPages != nil {
		pages = read.ProgressPages
	}
	if p := read.ProgressPercent(); p != nil {
		rounded := round1(*p)
		pct = &rounded
	}
	if pages == nil && pct == nil {
		return
	}

	if e.localFieldName(FieldProgressPages) != "" {
		var newPages string
		if pages != nil {
			newPages = strconv.Itoa(*pages)
		} else if totalPages > 0 {
			newPages = strconv.Itoa(int(math.Round(*pct / 100 * float64(totalPages))))
		}
		if newPages != "" && !equalNumeric(local[FieldProgressPages], newPages) {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldProgressPages, Old: local[FieldProgressPages], New: newPages, Direction: DirectionFromRemote,
			})
		}
	}

	if e.localFieldName(FieldProgressPercent) != "" {
		var newPct string
		if pct != nil {
			newPct = formatNumber(*pct)
		} else if totalPages > 0 {
			newPct = formatNumber(round1(float64(*pages) / float64(totalPages) * 100))
		}
		if newPct != "" && !equalNumeric(local[FieldProgressPercent], newPct) {
			bc.Changes = append(bc.Changes, Change{
				Field: FieldProgressPercent, Old: local[FieldProgressPercent], New: newPct, Direction: DirectionFromRemote,
			})
		}
	}
}

// SnapshotValues renders the record's current role values for the link
// snapshot, taken after a successful apply.
func (e *Engine) SnapshotValues(book *entities.Book) map[string]string {
	return e.LocalValues(book)
}

func statusID(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for id, canonical := range hardcover.StatusNames {
		if strings.EqualFold(canonical, name) {
			return id, true
		}
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// formatNumber renders without trailing zeroes, so "4" and "4.0" collapse to
// the same representation.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// equalNumeric compares by value when both sides parse as numbers, by string
// otherwise. Empty never equals a number.
func equalNumeric(a, b string) bool {
	if a == b {
		return true
	}
	fa, okA := parseNumber(a)
	fb, okB := parseNumber(b)
	if okA && okB {
		return math.Abs(fa-fb) < 1e-9
	}
	return false
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// truncateReview cuts at the byte limit without splitting a rune, so the
// truncated text stays valid UTF-8.
func truncateReview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"01/02/2006",
}

// normalizeDate reduces any supported timestamp representation to
// YYYY-MM-DD. Unparseable input normalizes to "".
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return ""
}

func normalizeBool(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "checked":
		return "true"
	default:
		return "false"
	}
}
