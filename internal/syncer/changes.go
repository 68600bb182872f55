package syncer

// Direction of a sync run.
type Direction string

const (
	DirectionToRemote   Direction = "to_hardcover"
	DirectionFromRemote Direction = "from_hardcover"
)

// Sync roles. Configuration binds each role to a local custom field; the
// role names double as snapshot keys.
const (
	FieldStatus          = "status"
	FieldRating          = "rating"
	FieldDateStarted     = "date_started"
	FieldDateFinished    = "date_finished"
	FieldProgressPages   = "progress_pages"
	FieldProgressPercent = "progress_percent"
	FieldReview          = "review"
	FieldIsRead          = "is_read"
)

// fieldOrder fixes the order changes are emitted in, so previews render
// deterministically.
var fieldOrder = map[string]int{
	FieldStatus:          0,
	FieldRating:          1,
	FieldDateStarted:     2,
	FieldDateFinished:    3,
	FieldProgressPages:   4,
	FieldProgressPercent: 5,
	FieldReview:          6,
	FieldIsRead:          7,
}

// Change is a single field-level difference between the local record and the
// remote entry. Old and New are rendered in the target side's representation.
type Change struct {
	Field     string    `json:"field"`
	Old       string    `json:"old"`
	New       string    `json:"new"`
	Direction Direction `json:"direction"`

	// Truncated marks a review cut down to the remote length limit; New
	// carries the truncated text.
	Truncated bool `json:"truncated,omitempty"`

	// Accepted is toggled during preview; only accepted changes are applied.
	Accepted bool `json:"accepted"`
}

// BookChanges is the change set computed for one book in one direction.
type BookChanges struct {
	BookID  uint     `json:"book_id"`
	Title   string   `json:"title"`
	Changes []Change `json:"changes"`
}

// Empty reports whether the book has no changes at all.
func (b *BookChanges) Empty() bool {
	return len(b.Changes) == 0
}

// SetAccepted toggles a single field change.
func (b *BookChanges) SetAccepted(field string, accepted bool) {
	for i := range b.Changes {
		if b.Changes[i].Field == field {
			b.Changes[i].Accepted = accepted
		}
	}
}

// SetAllAccepted toggles every field change, mirroring a parent checkbox.
func (b *BookChanges) SetAllAccepted(accepted bool) {
	for i := range b.Changes {
		b.Changes[i].Accepted = accepted
	}
}

// AllAccepted reports whether every field change is accepted; the book-level
// checkbox is checked exactly when this holds.
func (b *BookChanges) AllAccepted() bool {
	if len(b.Changes) == 0 {
		return false
	}
	for _, c := range b.Changes {
		if !c.Accepted {
			return false
		}
	}
	return true
}

// AnyAccepted reports whether at least one field change is accepted; the
// book-level checkbox renders partially checked when AnyAccepted but not
// AllAccepted.
func (b *BookChanges) AnyAccepted() bool {
	for _, c := range b.Changes {
		if c.Accepted {
			return true
		}
	}
	return false
}

// AcceptedChanges returns the accepted subset in emission order.
func (b *BookChanges) AcceptedChanges() []Change {
	var accepted []Change
	for _, c := range b.Changes {
		if c.Accepted {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

// Get returns the change for a field, or nil.
func (b *BookChanges) Get(field string) *Change {
	for i := range b.Changes {
		if b.Changes[i].Field == field {
			return &b.Changes[i]
		}
	}
	return nil
}

// sortChanges orders changes by the fixed field order.
func sortChanges(changes []Change) []Change {
	for i := 1; i < len(changes); i++ {
		for j := i; j > 0 && fieldOrder[changes[j].Field] < fieldOrder[changes[j-1].Field]; j-- {
			changes[j], changes[j-1] = changes[j-1], changes[j]
		}
	}
	return changes
}
