package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"minilibrary/internal/config"
	"minilibrary/internal/database"
	"minilibrary/internal/models"
	"minilibrary/internal/repositories"
	"minilibrary/internal/services"
	"minilibrary/internal/session"
)

// testApp runs the full router against a seeded throwaway database and keeps
// the session cookie across requests, like a browser would.
type testApp struct {
	t       *testing.T
	router  *gin.Engine
	db      *gorm.DB
	cookies []*http.Cookie
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		SQLitePath: filepath.Join(t.TempDir(), "library.db"),
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.Seed(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	userRepo := repositories.NewUserRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	borrowingRepo := repositories.NewBorrowingRepository(db)

	librarySvc := services.NewLibraryService(db, userRepo, bookRepo, borrowingRepo)
	authSvc := services.NewAuthService(db, userRepo)

	router := gin.New()
	router.Use(sessions.Sessions(session.CookieName, cookie.NewStore([]byte("test-secret"))))
	router.LoadHTMLGlob("../../web/templates/*.html")
	RegisterRoutes(router, librarySvc, authSvc)

	return &testApp{t: t, router: router, db: db}
}

func (a *testApp) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range a.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if set := w.Result().Cookies(); len(set) > 0 {
		a.cookies = set
	}
	return w
}

func (a *testApp) doJSON(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return a.do(method, path, r, "application/json")
}

func (a *testApp) login(username, password string) {
	a.t.Helper()
	form := url.Values{
		"action":   {"login"},
		"username": {username},
		"password": {password},
	}
	w := a.do(http.MethodPost, "/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		a.t.Fatalf("login as %s failed: status=%d location=%q", username, w.Code, w.Header().Get("Location"))
	}
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad JSON %q: %v", w.Body.String(), err)
	}
	return out
}

func (a *testApp) bookID(title string) uint {
	a.t.Helper()
	var book models.Book
	if err := a.db.First(&book, "title = ?", title).Error; err != nil {
		a.t.Fatalf("find book %q: %v", title, err)
	}
	return book.ID
}

func (a *testApp) userID(username string) uint {
	a.t.Helper()
	var user models.User
	if err := a.db.First(&user, "username = ?", username).Error; err != nil {
		a.t.Fatalf("find user %q: %v", username, err)
	}
	return user.ID
}

func TestAPIAuthGates(t *testing.T) {
	app := newTestApp(t)

	if w := app.doJSON(http.MethodGet, "/api/books", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous GET /api/books: %d, want 401", w.Code)
	}
	if w := app.doJSON(http.MethodPost, "/api/borrow/1", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous borrow: %d, want 401", w.Code)
	}

	app.login("user", "userpass")
	if w := app.doJSON(http.MethodGet, "/api/books", ""); w.Code != http.StatusForbidden {
		t.Fatalf("member GET /api/books: %d, want 403", w.Code)
	}
	if w := app.doJSON(http.MethodGet, "/api/users", ""); w.Code != http.StatusForbidden {
		t.Fatalf("member GET /api/users: %d, want 403", w.Code)
	}
}

func TestBookCRUDAPI(t *testing.T) {
	app := newTestApp(t)
	app.login("admin", "adminpass")

	w := app.doJSON(http.MethodPost, "/api/books", `{"title":"Dune","author":"Frank Herbert","genre":"Science Fiction","copies":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d body=%s", w.Code, w.Body.String())
	}
	id := uint(decodeJSON(t, w)["id"].(float64))

	w = app.doJSON(http.MethodGet, fmt.Sprintf("/api/books/%d", id), "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	book := decodeJSON(t, w)
	if book["title"] != "Dune" || book["total_copies"].(float64) != 2 || book["available_copies"].(float64) != 2 {
		t.Fatalf("book payload: %v", book)
	}

	w = app.doJSON(http.MethodPut, fmt.Sprintf("/api/books/%d", id), `{"title":"Dune","author":"Frank Herbert","genre":"Science Fiction","copies":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d body=%s", w.Code, w.Body.String())
	}
	w = app.doJSON(http.MethodGet, fmt.Sprintf("/api/books/%d", id), "")
	if got := decodeJSON(t, w)["available_copies"].(float64); got != 5 {
		t.Fatalf("available after update = %v, want 5", got)
	}

	// Missing fields fail binding, not the handler.
	w = app.doJSON(http.MethodPost, "/api/books", `{"author":"Nobody"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create without title: %d, want 400", w.Code)
	}

	w = app.doJSON(http.MethodDelete, fmt.Sprintf("/api/books/%d", id), "")
	if w.Code != http.StatusOK || decodeJSON(t, w)["result"] != "success" {
		t.Fatalf("delete: %d body=%s", w.Code, w.Body.String())
	}

	if w = app.doJSON(http.MethodGet, fmt.Sprintf("/api/books/%d", id), ""); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d, want 404", w.Code)
	}
	if w = app.doJSON(http.MethodPut, fmt.Sprintf("/api/books/%d", id), `{"title":"x","author":"y","genre":"z","copies":1}`); w.Code != http.StatusNotFound {
		t.Fatalf("update deleted: %d, want 404", w.Code)
	}
	if w = app.doJSON(http.MethodDelete, fmt.Sprintf("/api/books/%d", id), ""); w.Code != http.StatusNotFound {
		t.Fatalf("delete deleted: %d, want 404", w.Code)
	}
}

func TestBorrowReturnAPI(t *testing.T) {
	app := newTestApp(t)
	frieren := app.bookID("Frieren: Beyond Journey's End - Vol. 1") // seeded with a single copy

	app.login("user", "userpass")

	w := app.doJSON(http.MethodPost, fmt.Sprintf("/api/borrow/%d", frieren), "")
	if w.Code != http.StatusOK {
		t.Fatalf("borrow: %d body=%s", w.Code, w.Body.String())
	}

	w = app.doJSON(http.MethodPost, fmt.Sprintf("/api/borrow/%d", frieren), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate borrow: %d, want 400", w.Code)
	}
	if msg := decodeJSON(t, w)["error"]; msg != "You have already borrowed this book and have not returned it." {
		t.Fatalf("duplicate borrow message: %v", msg)
	}

	// The other account sees the last copy gone.
	other := newTestAppSession(app)
	other.login("admin", "adminpass")
	w = other.doJSON(http.MethodPost, fmt.Sprintf("/api/borrow/%d", frieren), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("borrow with no copies: %d, want 400", w.Code)
	}
	if msg := decodeJSON(t, w)["error"]; msg != "No copies are currently available." {
		t.Fatalf("no-copies message: %v", msg)
	}

	w = app.doJSON(http.MethodPost, fmt.Sprintf("/api/return/%d", frieren), "")
	if w.Code != http.StatusOK {
		t.Fatalf("return: %d body=%s", w.Code, w.Body.String())
	}
	w = app.doJSON(http.MethodPost, fmt.Sprintf("/api/return/%d", frieren), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("double return: %d, want 400", w.Code)
	}

	// Borrow against a book that does not exist is a domain 400, not a 404.
	w = app.doJSON(http.MethodPost, "/api/borrow/99999", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("borrow missing book: %d, want 400", w.Code)
	}
}

// newTestAppSession shares the router and database but starts a fresh cookie
// jar, simulating a second browser.
func newTestAppSession(app *testApp) *testApp {
	return &testApp{t: app.t, router: app.router, db: app.db}
}

func TestBorrowOnBehalf(t *testing.T) {
	app := newTestApp(t)
	bookID := app.bookID("Deep Learning")
	memberID := app.userID("user")
	adminID := app.userID("admin")

	// A member cannot act on another account.
	app.login("user", "userpass")
	w := app.doJSON(http.MethodPost, fmt.Sprintf("/api/borrow/%d", bookID), fmt.Sprintf(`{"user_id":%d}`, adminID))
	if w.Code != http.StatusForbidden {
		t.Fatalf("member on-behalf borrow: %d, want 403", w.Code)
	}

	// An admin can.
	admin := newTestAppSession(app)
	admin.login("admin", "adminpass")
	w = admin.doJSON(http.MethodPost, fmt.Sprintf("/api/borrow/%d", bookID), fmt.Sprintf(`{"user_id":%d}`, memberID))
	if w.Code != http.StatusOK {
		t.Fatalf("admin on-behalf borrow: %d body=%s", w.Code, w.Body.String())
	}

	var borrowing models.Borrowing
	if err := app.db.First(&borrowing, "book_id = ?", bookID).Error; err != nil {
		t.Fatalf("find borrowing: %v", err)
	}
	if borrowing.UserID != memberID {
		t.Fatalf("borrowing user = %d, want %d", borrowing.UserID, memberID)
	}
}

func TestDeleteOwnAccount(t *testing.T) {
	app := newTestApp(t)
	frieren := app.bookID("Frieren: Beyond Journey's End - Vol. 1")

	app.login("user", "userpass")

	if w := app.doJSON(http.MethodPost, fmt.Sprintf("/api/borrow/%d", frieren), ""); w.Code != http.StatusOK {
		t.Fatalf("borrow: %d", w.Code)
	}

	w := app.doJSON(http.MethodDelete, "/api/users/me", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("delete with active borrowing: %d, want 400", w.Code)
	}

	if w := app.doJSON(http.MethodPost, fmt.Sprintf("/api/return/%d", frieren), ""); w.Code != http.StatusOK {
		t.Fatalf("return: %d", w.Code)
	}

	w = app.doJSON(http.MethodDelete, "/api/users/me", "")
	if w.Code != http.StatusOK || decodeJSON(t, w)["result"] != "Account deleted" {
		t.Fatalf("delete account: %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	app.db.Model(&models.User{}).Where("username = ?", "user").Count(&count)
	if count != 0 {
		t.Fatal("user row still present after self-delete")
	}

	// The session died with the account.
	if w := app.doJSON(http.MethodDelete, "/api/users/me", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("request after self-delete: %d, want 401", w.Code)
	}
}

func TestUserBorrowingsEndpoint(t *testing.T) {
	app := newTestApp(t)
	frieren := app.bookID("Frieren: Beyond Journey's End - Vol. 1")
	memberID := app.userID("user")

	app.login("user", "userpass")
	if w := app.doJSON(http.MethodPost, fmt.Sprintf("/api/borrow/%d", frieren), ""); w.Code != http.StatusOK {
		t.Fatalf("borrow: %d", w.Code)
	}

	admin := newTestAppSession(app)
	admin.login("admin", "adminpass")
	w := admin.doJSON(http.MethodGet, fmt.Sprintf("/api/users/%d/borrowings", memberID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("borrowings: %d", w.Code)
	}

	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d borrowings, want 1", len(list))
	}
	entry := list[0]
	if entry["status"] != "borrowed" || entry["return_date"] != nil {
		t.Fatalf("entry: %v", entry)
	}
	if entry["book_id"].(float64) != float64(frieren) {
		t.Fatalf("book_id = %v, want %d", entry["book_id"], frieren)
	}
}

func TestPageFlows(t *testing.T) {
	app := newTestApp(t)

	// Bad credentials bounce back to the login page.
	form := url.Values{"action": {"login"}, "username": {"user"}, "password": {"nope"}}
	w := app.do(http.MethodPost, "/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("bad login: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}

	// Anonymous dashboard access redirects to login.
	anon := newTestAppSession(app)
	if w := anon.do(http.MethodGet, "/dashboard", nil, ""); w.Code != http.StatusSeeOther {
		t.Fatalf("anonymous dashboard: %d, want 303", w.Code)
	}

	app.login("user", "userpass")
	w = app.do(http.MethodGet, "/dashboard", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Catalog") {
		t.Fatalf("dashboard: %d", w.Code)
	}

	// Members are turned away from the admin pages.
	w = app.do(http.MethodGet, "/admin/panel", nil, "")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("member admin panel: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}

	// Borrow through the page surface flashes and redirects back.
	frieren := app.bookID("Frieren: Beyond Journey's End - Vol. 1")
	w = app.do(http.MethodGet, fmt.Sprintf("/borrow/%d", frieren), nil, "")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("page borrow: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
	w = app.do(http.MethodGet, "/dashboard", nil, "")
	if !strings.Contains(w.Body.String(), "Successfully borrowed") {
		t.Fatal("flash message not rendered on dashboard")
	}

	// Registration followed by login with the new account.
	reg := url.Values{
		"action":       {"register"},
		"reg_username": {"carol"},
		"reg_email":    {"carol@library.com"},
		"reg_password": {"pw12345"},
	}
	fresh := newTestAppSession(app)
	w = fresh.do(http.MethodPost, "/", strings.NewReader(reg.Encode()), "application/x-www-form-urlencoded")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("register: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
	fresh.login("carol", "pw12345")

	// Admin search via dashboard query.
	adminApp := newTestAppSession(app)
	adminApp.login("admin", "adminpass")
	w = adminApp.do(http.MethodGet, "/dashboard?query=fantasy", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Frieren") {
		t.Fatalf("search dashboard: %d", w.Code)
	}
}
