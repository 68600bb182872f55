package entities

import (
	"encoding/json"
	"time"
)

// Link associates a local book with a Hardcover book. The slug is the
// preferred key material: it survives Hardcover id renumbering. The snapshot
// holds the field values as of the last successful apply in either direction.
type Link struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BookID          uint      `gorm:"uniqueIndex" json:"book_id"`
	HardcoverBookID int       `gorm:"index" json:"hardcover_book_id"`
	HardcoverSlug   string    `gorm:"index;size:256" json:"hardcover_slug"`
	EditionID       int       `json:"edition_id,omitempty"`
	Snapshot        string    `gorm:"type:text" json:"snapshot,omitempty"` // JSON field -> value
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Link) TableName() string {
	return "links"
}

// SnapshotMap decodes the persisted snapshot. A missing or malformed
// snapshot decodes to an empty map, never an error: the snapshot is an
// optimization, not a source of truth.
func (l *Link) SnapshotMap() map[string]string {
	m := map[string]string{}
	if l.Snapshot == "" {
		return m
	}
	if err := json.Unmarshal([]byte(l.Snapshot), &m); err != nil {
		return map[string]string{}
	}
	return m
}

// SetSnapshot encodes and stores the given field values.
func (l *Link) SetSnapshot(values map[string]string) {
	if len(values) == 0 {
		l.Snapshot = ""
		return
	}
	data, err := json.Marshal(values)
	if err != nil {
		return
	}
	l.Snapshot = string(data)
}
