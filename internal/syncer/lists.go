package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrlokans/hardcover-sync/internal/hardcover"
)

// ListClient is the slice of the Hardcover client the list manager uses.
type ListClient interface {
	GetUserLists(ctx context.Context) ([]hardcover.List, error)
	GetBookListMemberships(ctx context.Context, bookID int) ([]hardcover.ListBookMembership, error)
	AddBookToList(ctx context.Context, listID, bookID int) (int, error)
	RemoveBookFromList(ctx context.Context, listBookID int) error
}

// ListManager adds and removes linked books on the user's Hardcover lists.
// Membership is queried live before every mutation, so repeated calls are
// idempotent and redundant remote mutations are never issued.
type ListManager struct {
	client ListClient
}

// NewListManager creates a list manager.
func NewListManager(client ListClient) *ListManager {
	return &ListManager{client: client}
}

// Lists returns the user's lists.
func (m *ListManager) Lists(ctx context.Context) ([]hardcover.List, error) {
	return m.client.GetUserLists(ctx)
}

// FindList resolves a list by name or slug, case-insensitively.
func (m *ListManager) FindList(ctx context.Context, name string) (*hardcover.List, error) {
	lists, err := m.client.GetUserLists(ctx)
	if err != nil {
		return nil, err
	}
	for i, l := range lists {
		if strings.EqualFold(l.Name, name) || strings.EqualFold(l.Slug, name) {
			return &lists[i], nil
		}
	}
	return nil, fmt.Errorf("no list named %q", name)
}

// IsOnList reports whether the book is on the list; listBookID is the
// membership row id needed for removal, 0 when absent.
func (m *ListManager) IsOnList(ctx context.Context, bookID, listID int) (onList bool, listBookID int, err error) {
	memberships, err := m.client.GetBookListMemberships(ctx, bookID)
	if err != nil {
		return false, 0, err
	}
	for _, mem := range memberships {
		if mem.List.ID == listID {
			return true, mem.ListBookID, nil
		}
	}
	return false, 0, nil
}

// AddToList puts the book on the list. added is false when the book was
// already there and no mutation was sent.
func (m *ListManager) AddToList(ctx context.Context, bookID, listID int) (added bool, err error) {
	onList, _, err := m.IsOnList(ctx, bookID, listID)
	if err != nil {
		return false, err
	}
	if onList {
		return false, nil
	}
	if _, err := m.client.AddBookToList(ctx, listID, bookID); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFromList takes the book off the list. removed is false when the book
// was not on it.
func (m *ListManager) RemoveFromList(ctx context.Context, bookID, listID int) (removed bool, err error) {
	onList, listBookID, err := m.IsOnList(ctx, bookID, listID)
	if err != nil {
		return false, err
	}
	if !onList {
		return false, nil
	}
	if err := m.client.RemoveBookFromList(ctx, listBookID); err != nil {
		return false, err
	}
	return true, nil
}
