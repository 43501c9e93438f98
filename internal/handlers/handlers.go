package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"minilibrary/internal/services"
)

// RegisterRoutes mounts the JSON API and the server-rendered pages.
func RegisterRoutes(r *gin.Engine, svc services.LibraryService, auth services.AuthService) {
	api := &APIHandler{svc: svc}
	pages := &PageHandler{svc: svc, auth: auth}

	// JSON API
	adminAPI := r.Group("/api", RequireAdminAPI())
	{
		adminAPI.GET("/books", api.listBooks)
		adminAPI.GET("/books/:id", api.getBook)
		adminAPI.POST("/books", api.createBook)
		adminAPI.PUT("/books/:id", api.updateBook)
		adminAPI.DELETE("/books/:id", api.deleteBook)
		adminAPI.GET("/users", api.listUsers)
		adminAPI.GET("/users/:id/borrowings", api.listUserBorrowings)
	}
	userAPI := r.Group("/api", RequireAuthAPI())
	{
		userAPI.POST("/borrow/:book_id", api.borrow)
		userAPI.POST("/return/:book_id", api.returnBook)
		userAPI.DELETE("/users/me", api.deleteOwnAccount)
	}

	// Pages
	r.GET("/", pages.index)
	r.POST("/", pages.indexAction)
	r.GET("/logout", pages.logout)

	member := r.Group("/", RequireAuthPage())
	{
		member.GET("/dashboard", pages.dashboard)
		member.GET("/borrow/:book_id", pages.borrow)
		member.GET("/return/:book_id", pages.returnBook)
	}

	admin := r.Group("/admin", RequireAdminPage())
	{
		admin.GET("/panel", pages.adminPanel)
		admin.GET("/logs", pages.adminLogs)
		admin.POST("/book/add", pages.addBook)
		admin.POST("/book/edit/:id", pages.editBook)
		admin.POST("/book/delete/:id", pages.deleteBook)
	}
}

// errStatus maps a domain error to the HTTP status of the admin/catalog API.
func errStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrBookNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoCopiesAvailable),
		errors.Is(err, services.ErrAlreadyBorrowed),
		errors.Is(err, services.ErrNoActiveBorrowing),
		errors.Is(err, services.ErrHasActiveBorrowings),
		errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isDomainErr reports whether err is an expected business failure rather than
// a store fault.
func isDomainErr(err error) bool {
	return errStatus(err) != http.StatusInternalServerError
}

func paramUint(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
