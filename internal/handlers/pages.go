package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"minilibrary/internal/session"
	"minilibrary/internal/services"
)

// PageHandler serves the server-rendered surface: login/register, dashboard
// and the admin panel. Every mutating action flashes a notice and redirects
// back to the page it came from.
type PageHandler struct {
	svc  services.LibraryService
	auth services.AuthService
}

func (h *PageHandler) index(c *gin.Context) {
	if session.IsLogin(c) {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Flashes": session.PopFlashes(c),
	})
}

// indexAction handles both forms on the login page, dispatched on the hidden
// "action" field.
func (h *PageHandler) indexAction(c *gin.Context) {
	switch c.PostForm("action") {
	case "login":
		h.login(c)
	case "register":
		h.register(c)
	default:
		session.AddFlash(c, "error", "Unknown form action.")
		c.Redirect(http.StatusSeeOther, "/")
	}
}

func (h *PageHandler) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := h.auth.Authenticate(username, password)
	if err != nil {
		session.AddFlash(c, "error", "Invalid username or password.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	if err := session.SetLoginUser(c, user); err != nil {
		session.AddFlash(c, "error", "Could not start a session. Please try again.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	session.AddFlash(c, "success", fmt.Sprintf("Welcome, %s!", user.Username))
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *PageHandler) register(c *gin.Context) {
	username := c.PostForm("reg_username")
	email := c.PostForm("reg_email")
	password := c.PostForm("reg_password")

	if username == "" || email == "" || password == "" {
		session.AddFlash(c, "error", "Please fill in all registration fields.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	if _, err := h.auth.Register(username, email, password); err != nil {
		if isDomainErr(err) {
			session.AddFlash(c, "error", err.Error())
		} else {
			session.AddFlash(c, "error", "Registration failed. Please try again.")
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	session.AddFlash(c, "success", "Registration successful. Please log in.")
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *PageHandler) logout(c *gin.Context) {
	_ = session.ClearSession(c)
	session.AddFlash(c, "info", "You have been logged out successfully.")
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *PageHandler) dashboard(c *gin.Context) {
	identity := identityFrom(c)

	query := c.Query("query")
	var (
		books interface{}
		err   error
	)
	if query != "" {
		books, err = h.svc.SearchBooks(query)
	} else {
		books, err = h.svc.ListBooks()
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to load catalog")
		return
	}

	borrowings, err := h.svc.ListUserBorrowings(identity.UserID)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to load borrowings")
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Username":   identity.Username,
		"Role":       identity.Role,
		"IsAdmin":    identity.IsAdmin(),
		"Query":      query,
		"Books":      books,
		"Borrowings": borrowings,
		"Flashes":    session.PopFlashes(c),
	})
}

func (h *PageHandler) borrow(c *gin.Context) {
	identity := identityFrom(c)

	bookID, ok := paramUint(c, "book_id")
	if !ok {
		session.AddFlash(c, "error", "Borrow failed: invalid book id.")
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}

	borrowing, err := h.svc.Borrow(identity.UserID, bookID)
	if err != nil {
		session.AddFlash(c, "error", "Borrow failed: "+userMessage(err))
	} else {
		session.AddFlash(c, "success", fmt.Sprintf("Successfully borrowed '%s'.", borrowing.Book.Title))
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *PageHandler) returnBook(c *gin.Context) {
	identity := identityFrom(c)

	bookID, ok := paramUint(c, "book_id")
	if !ok {
		session.AddFlash(c, "error", "Return failed: invalid book id.")
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}

	borrowing, err := h.svc.Return(identity.UserID, bookID)
	if err != nil {
		session.AddFlash(c, "error", "Return failed: "+userMessage(err))
	} else {
		session.AddFlash(c, "success", fmt.Sprintf("Successfully returned '%s'.", borrowing.Book.Title))
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *PageHandler) adminPanel(c *gin.Context) {
	books, err := h.svc.ListBooks()
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to load catalog")
		return
	}
	userLogs, err := h.svc.ListUsersWithStats()
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to load user logs")
		return
	}
	c.HTML(http.StatusOK, "admin_panel.html", gin.H{
		"Books":    books,
		"UserLogs": userLogs,
		"Flashes":  session.PopFlashes(c),
	})
}

func (h *PageHandler) adminLogs(c *gin.Context) {
	userLogs, err := h.svc.ListUsersWithStats()
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to load user logs")
		return
	}
	c.HTML(http.StatusOK, "admin_logs.html", gin.H{
		"UserLogs": userLogs,
		"Flashes":  session.PopFlashes(c),
	})
}

// bookForm parses the shared add/edit book form fields.
func bookForm(c *gin.Context) (title, author, genre string, copies int, err error) {
	title = c.PostForm("title")
	author = c.PostForm("author")
	genre = c.PostForm("genre")
	if title == "" || author == "" {
		return "", "", "", 0, fmt.Errorf("title and author are required")
	}
	copies, err = strconv.Atoi(c.PostForm("copies"))
	if err != nil || copies < 0 {
		return "", "", "", 0, fmt.Errorf("copies must be a non-negative number")
	}
	return title, author, genre, copies, nil
}

func (h *PageHandler) addBook(c *gin.Context) {
	title, author, genre, copies, err := bookForm(c)
	if err != nil {
		session.AddFlash(c, "error", "Error adding book: "+err.Error())
		c.Redirect(http.StatusSeeOther, "/admin/panel")
		return
	}

	if _, err := h.svc.CreateBook(title, author, genre, copies); err != nil {
		session.AddFlash(c, "error", "Error adding book: "+userMessage(err))
	} else {
		session.AddFlash(c, "success", fmt.Sprintf("Book '%s' added successfully.", title))
	}
	c.Redirect(http.StatusSeeOther, "/admin/panel")
}

func (h *PageHandler) editBook(c *gin.Context) {
	bookID, ok := paramUint(c, "id")
	if !ok {
		session.AddFlash(c, "error", "Error editing book: invalid book id.")
		c.Redirect(http.StatusSeeOther, "/admin/panel")
		return
	}
	title, author, genre, copies, err := bookForm(c)
	if err != nil {
		session.AddFlash(c, "error", "Error editing book: "+err.Error())
		c.Redirect(http.StatusSeeOther, "/admin/panel")
		return
	}

	book, err := h.svc.UpdateBook(bookID, title, author, genre, copies)
	if err != nil {
		session.AddFlash(c, "error", "Error editing book: "+userMessage(err))
	} else {
		session.AddFlash(c, "success", fmt.Sprintf("Book '%s' updated successfully.", book.Title))
	}
	c.Redirect(http.StatusSeeOther, "/admin/panel")
}

func (h *PageHandler) deleteBook(c *gin.Context) {
	bookID, ok := paramUint(c, "id")
	if !ok {
		session.AddFlash(c, "error", "Error deleting book: invalid book id.")
		c.Redirect(http.StatusSeeOther, "/admin/panel")
		return
	}

	if err := h.svc.DeleteBook(bookID); err != nil {
		session.AddFlash(c, "error", "Error deleting book: "+userMessage(err))
	} else {
		session.AddFlash(c, "success", "Book deleted successfully.")
	}
	c.Redirect(http.StatusSeeOther, "/admin/panel")
}

// userMessage keeps store faults out of flash notices while passing domain
// errors through verbatim.
func userMessage(err error) string {
	if isDomainErr(err) {
		return err.Error()
	}
	return "an unexpected error occurred."
}
