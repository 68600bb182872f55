package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/hardcover-sync/internal/hardcover"
)

// ListStore manages Hardcover list membership for linked books.
type ListStore interface {
	Lists(ctx context.Context) ([]hardcover.List, error)
	FindList(ctx context.Context, name string) (*hardcover.List, error)
	IsOnList(ctx context.Context, bookID, listID int) (onList bool, listBookID int, err error)
	AddToList(ctx context.Context, bookID, listID int) (added bool, err error)
	RemoveFromList(ctx context.Context, bookID, listID int) (removed bool, err error)
}

type ListsController struct {
	lists ListStore
	links LinkStore
}

func NewListsController(lists ListStore, links LinkStore) *ListsController {
	return &ListsController{
		lists: lists,
		links: links,
	}
}

func (controller *ListsController) GetUserLists(c *gin.Context) {
	lists, err := controller.lists.Lists(c.Request.Context())
	if err != nil {
		if hardcover.IsUnauthorized(err) {
			c.IndentedJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.IndentedJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"lists": lists, "count": len(lists)})
}

// hardcoverBookID resolves the remote book id of a local book through the
// link cache. List membership only exists for linked books.
func (controller *ListsController) hardcoverBookID(c *gin.Context) (int, bool) {
	bookID, ok := parseBookID(c)
	if !ok {
		return 0, false
	}
	link, err := controller.links.Get(bookID)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return 0, false
	}
	if link == nil {
		c.IndentedJSON(http.StatusConflict, gin.H{"error": "book is not linked"})
		return 0, false
	}
	return link.HardcoverBookID, true
}

type listMembershipRequest struct {
	List string `json:"list" binding:"required"`
}

func (controller *ListsController) AddBookToList(c *gin.Context) {
	remoteID, ok := controller.hardcoverBookID(c)
	if !ok {
		return
	}

	var req listMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "list is required"})
		return
	}

	list, err := controller.lists.FindList(c.Request.Context(), req.List)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	added, err := controller.lists.AddToList(c.Request.Context(), remoteID, list.ID)
	if err != nil {
		c.IndentedJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"list": list.Name, "added": added})
}

func (controller *ListsController) RemoveBookFromList(c *gin.Context) {
	remoteID, ok := controller.hardcoverBookID(c)
	if !ok {
		return
	}

	list, err := controller.lists.FindList(c.Request.Context(), c.Param("list"))
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	removed, err := controller.lists.RemoveFromList(c.Request.Context(), remoteID, list.ID)
	if err != nil {
		c.IndentedJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"list": list.Name, "removed": removed})
}
