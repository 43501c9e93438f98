package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"minilibrary/internal/session"
	"minilibrary/internal/services"
)

// APIHandler serves the JSON surface under /api.
type APIHandler struct {
	svc services.LibraryService
}

type bookRequest struct {
	Title  string `json:"title" binding:"required"`
	Author string `json:"author" binding:"required"`
	Genre  string `json:"genre" binding:"required"`
	Copies *int   `json:"copies" binding:"required,gte=0"`
}

func (h *APIHandler) listBooks(c *gin.Context) {
	books, err := h.svc.ListBooks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *APIHandler) getBook(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}
	book, err := h.svc.GetBook(id)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *APIHandler) createBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	book, err := h.svc.CreateBook(req.Title, req.Author, req.Genre, *req.Copies)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": book.ID})
}

func (h *APIHandler) updateBook(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	book, err := h.svc.UpdateBook(id, req.Title, req.Author, req.Genre, *req.Copies)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": book.ID})
}

func (h *APIHandler) deleteBook(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}
	if err := h.svc.DeleteBook(id); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

func (h *APIHandler) listUsers(c *gin.Context) {
	users, err := h.svc.ListUsersWithStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *APIHandler) listUserBorrowings(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	borrowings, err := h.svc.ListUserBorrowings(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, borrowings)
}

type borrowRequest struct {
	UserID uint `json:"user_id"`
}

// subjectUser resolves whose borrowing record the request acts on. The caller's
// own identity is the default; an explicit user_id in the body is honored only
// for admins, so members cannot act on other accounts.
func subjectUser(c *gin.Context) (uint, bool) {
	identity := identityFrom(c)

	var req borrowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return 0, false
		}
	}

	if req.UserID == 0 || req.UserID == identity.UserID {
		return identity.UserID, true
	}
	if !identity.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot borrow or return on behalf of another user"})
		return 0, false
	}
	return req.UserID, true
}

func (h *APIHandler) borrow(c *gin.Context) {
	bookID, ok := paramUint(c, "book_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}
	userID, ok := subjectUser(c)
	if !ok {
		return
	}

	borrowing, err := h.svc.Borrow(userID, bookID)
	if err != nil {
		if isDomainErr(err) {
			// The borrow/return surface reports every business failure,
			// missing book included, as a 400 with the notice text.
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": borrowing.ID})
}

func (h *APIHandler) returnBook(c *gin.Context) {
	bookID, ok := paramUint(c, "book_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}
	userID, ok := subjectUser(c)
	if !ok {
		return
	}

	borrowing, err := h.svc.Return(userID, bookID)
	if err != nil {
		if isDomainErr(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": borrowing.ID})
}

func (h *APIHandler) deleteOwnAccount(c *gin.Context) {
	identity := identityFrom(c)

	if err := h.svc.DeleteUser(identity.UserID); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	_ = session.ClearSession(c)
	c.JSON(http.StatusOK, gin.H{"result": "Account deleted"})
}
