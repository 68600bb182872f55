package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/hardcover-sync/internal/entities"
	"github.com/mrlokans/hardcover-sync/internal/hardcover"
	"github.com/mrlokans/hardcover-sync/internal/matcher"
)

// LinkStore provides the link cache access the links controller needs.
type LinkStore interface {
	Get(bookID uint) (*entities.Link, error)
	GetAll() ([]entities.Link, error)
	Put(link *entities.Link) error
	Remove(bookID uint) error
	Count() (int64, error)
}

// Resolver matches local records against the Hardcover catalog.
type Resolver interface {
	Resolve(ctx context.Context, book *entities.Book) (matcher.MatchResult, error)
	Accept(book *entities.Book, candidate *hardcover.Book) error
}

type LinksController struct {
	links    LinkStore
	books    BookStore
	resolver Resolver
}

func NewLinksController(links LinkStore, books BookStore, resolver Resolver) *LinksController {
	return &LinksController{
		links:    links,
		books:    books,
		resolver: resolver,
	}
}

func (controller *LinksController) GetAllLinks(c *gin.Context) {
	links, err := controller.links.GetAll()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"links": links, "count": len(links)})
}

func (controller *LinksController) GetLink(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	link, err := controller.links.Get(bookID)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if link == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "book is not linked"})
		return
	}
	c.IndentedJSON(http.StatusOK, link)
}

// MatchBook runs candidate resolution for one book without linking it. The
// caller inspects the result and confirms a candidate via CreateLink.
func (controller *LinksController) MatchBook(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	book, err := controller.books.GetBookByID(bookID)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	result, err := controller.resolver.Resolve(c.Request.Context(), book)
	if err != nil {
		if hardcover.IsUnauthorized(err) {
			c.IndentedJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.IndentedJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"kind":       result.Kind,
		"candidates": result.Candidates,
	})
}

type createLinkRequest struct {
	HardcoverBookID int    `json:"hardcover_book_id" binding:"required"`
	HardcoverSlug   string `json:"hardcover_slug"`
	EditionID       int    `json:"edition_id"`
}

// CreateLink links a book to the given Hardcover book, replacing any existing
// link. A relink to a different book drops the stored snapshot.
func (controller *LinksController) CreateLink(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "hardcover_book_id is required"})
		return
	}

	if _, err := controller.books.GetBookByID(bookID); err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	link := &entities.Link{
		BookID:          bookID,
		HardcoverBookID: req.HardcoverBookID,
		HardcoverSlug:   req.HardcoverSlug,
		EditionID:       req.EditionID,
	}
	if err := controller.links.Put(link); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusCreated, link)
}

func (controller *LinksController) DeleteLink(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	if err := controller.links.Remove(bookID); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "link removed"})
}

func (controller *LinksController) GetLinkStats(c *gin.Context) {
	total, err := controller.books.GetAllBooks()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	linked, err := controller.links.Count()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"total_books":  len(total),
		"linked_books": linked,
	})
}

func parseBookID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return 0, false
	}
	return uint(id), true
}
