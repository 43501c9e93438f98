package repositories

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"minilibrary/internal/models"
)

// Every method takes an optional *gorm.DB so the same repository can be used
// inside a transaction (pass the tx handle) or outside one (pass nil).

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	GetByID(db *gorm.DB, id uint) (*models.User, error)
	GetByUsername(db *gorm.DB, username string) (*models.User, error)
	ExistsByUsernameOrEmail(db *gorm.DB, username, email string) (bool, error)
	List(db *gorm.DB) ([]models.User, error)
	Delete(db *gorm.DB, id uint) error
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	GetByID(db *gorm.DB, id uint) (*models.Book, error)
	GetByIDForUpdate(db *gorm.DB, id uint) (*models.Book, error)
	List(db *gorm.DB) ([]models.Book, error)
	Search(db *gorm.DB, query string) ([]models.Book, error)
	Save(db *gorm.DB, book *models.Book) error
	AdjustAvailable(db *gorm.DB, bookID uint, delta int) error
	Delete(db *gorm.DB, id uint) error
}

type BorrowingRepository interface {
	Create(db *gorm.DB, borrowing *models.Borrowing) error
	HasActive(db *gorm.DB, userID, bookID uint) (bool, error)
	LatestActive(db *gorm.DB, userID, bookID uint) (*models.Borrowing, error)
	MarkReturned(db *gorm.DB, id uint, returnedAt time.Time) error
	ListByUser(db *gorm.DB, userID uint) ([]models.Borrowing, error)
	CountByUser(db *gorm.DB, userID uint) (int64, error)
	CountActiveByUser(db *gorm.DB, userID uint) (int64, error)
	DeleteByBook(db *gorm.DB, bookID uint) error
	DeleteByUser(db *gorm.DB, userID uint) error
}

// concrete implementations

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(db *gorm.DB, user *models.User) error {
	if db == nil {
		db = r.db
	}
	return db.Create(user).Error
}

func (r *userRepository) GetByID(db *gorm.DB, id uint) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(db *gorm.DB, username string) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByUsernameOrEmail(db *gorm.DB, username, email string) (bool, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepository) List(db *gorm.DB) ([]models.User, error) {
	if db == nil {
		db = r.db
	}
	var users []models.User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Delete(db *gorm.DB, id uint) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.User{}, "id = ?", id).Error
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Create(book).Error
}

func (r *bookRepository) GetByID(db *gorm.DB, id uint) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByIDForUpdate locks the book row for the duration of the surrounding
// transaction. SQLite has no FOR UPDATE syntax; its transactions take a
// database-level write lock instead, so the clause is only added on PostgreSQL.
func (r *bookRepository) GetByIDForUpdate(db *gorm.DB, id uint) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(db *gorm.DB) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	var books []models.Book
	if err := db.Order("id").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

// Search matches the query as a case-insensitive substring of title, author or
// genre. LOWER(...) LIKE keeps the behavior identical on PostgreSQL and SQLite.
func (r *bookRepository) Search(db *gorm.DB, query string) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	pattern := "%" + escapeLike(query) + "%"
	var books []models.Book
	err := db.
		Where("LOWER(title) LIKE LOWER(?) ESCAPE '\\' OR LOWER(author) LIKE LOWER(?) ESCAPE '\\' OR LOWER(genre) LIKE LOWER(?) ESCAPE '\\'",
			pattern, pattern, pattern).
		Order("id").
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) Save(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Save(book).Error
}

func (r *bookRepository) AdjustAvailable(db *gorm.DB, bookID uint, delta int) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Book{}).
		Where("id = ?", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies + ?", delta)).
		Error
}

func (r *bookRepository) Delete(db *gorm.DB, id uint) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Book{}, "id = ?", id).Error
}

type borrowingRepository struct {
	db *gorm.DB
}

func NewBorrowingRepository(db *gorm.DB) BorrowingRepository {
	return &borrowingRepository{db: db}
}

func (r *borrowingRepository) Create(db *gorm.DB, borrowing *models.Borrowing) error {
	if db == nil {
		db = r.db
	}
	return db.Create(borrowing).Error
}

func (r *borrowingRepository) HasActive(db *gorm.DB, userID, bookID uint) (bool, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Borrowing{}).
		Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, models.BorrowingStatusBorrowed).
		Count(&count).Error
	return count > 0, err
}

// LatestActive returns the most recently borrowed active row for the pair.
// There should be at most one, but ordering makes the tie-break deterministic.
func (r *borrowingRepository) LatestActive(db *gorm.DB, userID, bookID uint) (*models.Borrowing, error) {
	if db == nil {
		db = r.db
	}
	var borrowing models.Borrowing
	err := db.
		Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, models.BorrowingStatusBorrowed).
		Order("borrow_date DESC, id DESC").
		First(&borrowing).Error
	if err != nil {
		return nil, err
	}
	return &borrowing, nil
}

func (r *borrowingRepository) MarkReturned(db *gorm.DB, id uint, returnedAt time.Time) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Borrowing{}).
		Where("id = ? AND status = ?", id, models.BorrowingStatusBorrowed).
		Updates(map[string]interface{}{
			"return_date": returnedAt,
			"status":      models.BorrowingStatusReturned,
		}).Error
}

func (r *borrowingRepository) ListByUser(db *gorm.DB, userID uint) ([]models.Borrowing, error) {
	if db == nil {
		db = r.db
	}
	var borrowings []models.Borrowing
	err := db.
		Preload("Book").
		Where("user_id = ?", userID).
		Order("borrow_date DESC, id DESC").
		Find(&borrowings).Error
	if err != nil {
		return nil, err
	}
	return borrowings, nil
}

func (r *borrowingRepository) CountByUser(db *gorm.DB, userID uint) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Borrowing{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *borrowingRepository) CountActiveByUser(db *gorm.DB, userID uint) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Borrowing{}).
		Where("user_id = ? AND status = ?", userID, models.BorrowingStatusBorrowed).
		Count(&count).Error
	return count, err
}

func (r *borrowingRepository) DeleteByBook(db *gorm.DB, bookID uint) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Borrowing{}, "book_id = ?", bookID).Error
}

func (r *borrowingRepository) DeleteByUser(db *gorm.DB, userID uint) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Borrowing{}, "user_id = ?", userID).Error
}

// escapeLike escapes LIKE metacharacters in user-supplied search input.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
