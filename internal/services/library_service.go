package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"minilibrary/internal/logger"
	"minilibrary/internal/models"
	"minilibrary/internal/repositories"
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────
//
// Messages double as user-facing notices, so they are full sentences.

var (
	// ErrBookNotFound is returned when the requested book does not exist.
	ErrBookNotFound = errors.New("Book not found.")

	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("User not found.")

	// ErrNoCopiesAvailable is returned when every copy of the book is lent out.
	ErrNoCopiesAvailable = errors.New("No copies are currently available.")

	// ErrAlreadyBorrowed is returned when the user already holds an active
	// borrowing for the same book.
	ErrAlreadyBorrowed = errors.New("You have already borrowed this book and have not returned it.")

	// ErrNoActiveBorrowing is returned when a return is attempted without a
	// matching active borrowing.
	ErrNoActiveBorrowing = errors.New("No active borrowing record found for this user and book.")

	// ErrHasActiveBorrowings blocks account deletion while books are out.
	ErrHasActiveBorrowings = errors.New("You cannot delete your account while you have borrowed books. Please return all books first.")
)

// ─── Service Interface ────────────────────────────────────────────────────────

// UserStats annotates a user with aggregate borrowing counts for the admin
// views. History carries the full log for template rendering only.
type UserStats struct {
	ID               uint               `json:"id"`
	Username         string             `json:"username"`
	Role             models.UserRole    `json:"role"`
	TotalBorrowed    int64              `json:"total_borrowed"`
	ActiveBorrowings int64              `json:"active_borrowings_count"`
	History          []models.Borrowing `json:"-"`
}

// LibraryService defines the application-level operations of the library system.
type LibraryService interface {
	CreateBook(title, author, genre string, copies int) (*models.Book, error)
	UpdateBook(bookID uint, title, author, genre string, totalCopies int) (*models.Book, error)
	DeleteBook(bookID uint) error
	GetBook(bookID uint) (*models.Book, error)
	ListBooks() ([]models.Book, error)
	SearchBooks(query string) ([]models.Book, error)

	Borrow(userID, bookID uint) (*models.Borrowing, error)
	Return(userID, bookID uint) (*models.Borrowing, error)

	ListUserBorrowings(userID uint) ([]models.Borrowing, error)
	ListUsersWithStats() ([]UserStats, error)
	DeleteUser(userID uint) error
}

// ─── Implementation ───────────────────────────────────────────────────────────

type libraryService struct {
	db            *gorm.DB
	userRepo      repositories.UserRepository
	bookRepo      repositories.BookRepository
	borrowingRepo repositories.BorrowingRepository
}

// NewLibraryService wires up all dependencies and returns a LibraryService.
func NewLibraryService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	bookRepo repositories.BookRepository,
	borrowingRepo repositories.BorrowingRepository,
) LibraryService {
	return &libraryService{
		db:            db,
		userRepo:      userRepo,
		bookRepo:      bookRepo,
		borrowingRepo: borrowingRepo,
	}
}

// ─── Catalog Management ───────────────────────────────────────────────────────

// CreateBook inserts a catalog entry with all copies initially available.
func (s *libraryService) CreateBook(title, author, genre string, copies int) (*models.Book, error) {
	book := &models.Book{
		Title:           title,
		Author:          author,
		Genre:           genre,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	if err := s.bookRepo.Create(nil, book); err != nil {
		logger.Errorf("CreateBook: failed to create book record: %v", err)
		return nil, err
	}
	logger.Infof("CreateBook: created book %q (id=%d) with %d copies", book.Title, book.ID, copies)
	return book, nil
}

// UpdateBook rewrites the book fields and propagates a capacity change to
// availability: available += (new_total - old_total), clamped to
// [0, new_total] so the invariant 0 <= available <= total survives reductions.
func (s *libraryService) UpdateBook(bookID uint, title, author, genre string, totalCopies int) (*models.Book, error) {
	var updated *models.Book

	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByIDForUpdate(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		available := book.AvailableCopies + (totalCopies - book.TotalCopies)
		if available < 0 {
			available = 0
		}
		if available > totalCopies {
			available = totalCopies
		}

		book.Title = title
		book.Author = author
		book.Genre = genre
		book.TotalCopies = totalCopies
		book.AvailableCopies = available

		if err := s.bookRepo.Save(tx, book); err != nil {
			logger.Errorf("UpdateBook: failed to save book %d: %v", bookID, err)
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("UpdateBook: updated book %d, total=%d available=%d", bookID, updated.TotalCopies, updated.AvailableCopies)
	return updated, nil
}

// DeleteBook removes the book and every borrowing row referencing it as one
// atomic unit.
func (s *libraryService) DeleteBook(bookID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.bookRepo.GetByID(tx, bookID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if err := s.borrowingRepo.DeleteByBook(tx, bookID); err != nil {
			logger.Errorf("DeleteBook: failed to delete borrowings for book %d: %v", bookID, err)
			return err
		}
		return s.bookRepo.Delete(tx, bookID)
	})
	if err == nil {
		logger.Infof("DeleteBook: deleted book %d with its borrowing history", bookID)
	}
	return err
}

func (s *libraryService) GetBook(bookID uint) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(nil, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *libraryService) ListBooks() ([]models.Book, error) {
	return s.bookRepo.List(nil)
}

func (s *libraryService) SearchBooks(query string) ([]models.Book, error) {
	return s.bookRepo.Search(nil, query)
}

// ─── Borrow / Return ──────────────────────────────────────────────────────────

// Borrow implements the transactional borrow flow: lock the book row, re-check
// availability under the lock, guard against a duplicate active borrowing,
// decrement the counter and insert the log entry. Locking before the check is
// what keeps two simultaneous borrowers of the last copy from both succeeding.
func (s *libraryService) Borrow(userID, bookID uint) (*models.Borrowing, error) {
	var result *models.Borrowing

	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByIDForUpdate(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		if book.AvailableCopies <= 0 {
			return ErrNoCopiesAvailable
		}

		active, err := s.borrowingRepo.HasActive(tx, userID, bookID)
		if err != nil {
			return err
		}
		if active {
			return ErrAlreadyBorrowed
		}

		if err := s.bookRepo.AdjustAvailable(tx, bookID, -1); err != nil {
			logger.Errorf("Borrow: failed to decrement availability of book %d: %v", bookID, err)
			return err
		}

		borrowing := &models.Borrowing{
			UserID:     userID,
			BookID:     bookID,
			BorrowDate: time.Now().UTC(),
			Status:     models.BorrowingStatusBorrowed,
		}
		if err := s.borrowingRepo.Create(tx, borrowing); err != nil {
			logger.Errorf("Borrow: failed to create borrowing record: %v", err)
			return err
		}

		borrowing.Book = *book
		result = borrowing
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoCopiesAvailable) || errors.Is(err, ErrAlreadyBorrowed) || errors.Is(err, ErrBookNotFound) {
			logger.Debugf("Borrow: rejected user=%d book=%d: %v", userID, bookID, err)
		} else {
			logger.Errorf("Borrow: transaction failed for user=%d book=%d: %v", userID, bookID, err)
		}
		return nil, err
	}

	logger.Infof("Borrow: user %d borrowed book %d (borrowing id=%d)", userID, bookID, result.ID)
	return result, nil
}

// Return implements the transactional return flow: lock the book row, find the
// most recently borrowed active record for the pair, increment availability and
// mark the record returned.
func (s *libraryService) Return(userID, bookID uint) (*models.Borrowing, error) {
	var result *models.Borrowing

	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByIDForUpdate(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		borrowing, err := s.borrowingRepo.LatestActive(tx, userID, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoActiveBorrowing
			}
			return err
		}

		// Availability never exceeds capacity, even if counters drifted.
		if book.AvailableCopies < book.TotalCopies {
			if err := s.bookRepo.AdjustAvailable(tx, bookID, 1); err != nil {
				logger.Errorf("Return: failed to increment availability of book %d: %v", bookID, err)
				return err
			}
		}

		now := time.Now().UTC()
		if err := s.borrowingRepo.MarkReturned(tx, borrowing.ID, now); err != nil {
			logger.Errorf("Return: failed to mark borrowing %d returned: %v", borrowing.ID, err)
			return err
		}

		borrowing.ReturnDate = &now
		borrowing.Status = models.BorrowingStatusReturned
		borrowing.Book = *book
		result = borrowing
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBookNotFound) || errors.Is(err, ErrNoActiveBorrowing) {
			logger.Debugf("Return: rejected user=%d book=%d: %v", userID, bookID, err)
		} else {
			logger.Errorf("Return: transaction failed for user=%d book=%d: %v", userID, bookID, err)
		}
		return nil, err
	}

	logger.Infof("Return: user %d returned book %d (borrowing id=%d)", userID, bookID, result.ID)
	return result, nil
}

// ─── User Queries & Deletion ──────────────────────────────────────────────────

// ListUserBorrowings returns the user's full borrowing log, newest first, with
// books preloaded.
func (s *libraryService) ListUserBorrowings(userID uint) ([]models.Borrowing, error) {
	return s.borrowingRepo.ListByUser(nil, userID)
}

// ListUsersWithStats returns every user annotated with total and active
// borrowing counts plus the full history for the admin log pages.
func (s *libraryService) ListUsersWithStats() ([]UserStats, error) {
	users, err := s.userRepo.List(nil)
	if err != nil {
		return nil, err
	}

	stats := make([]UserStats, 0, len(users))
	for _, user := range users {
		total, err := s.borrowingRepo.CountByUser(nil, user.ID)
		if err != nil {
			return nil, err
		}
		active, err := s.borrowingRepo.CountActiveByUser(nil, user.ID)
		if err != nil {
			return nil, err
		}
		history, err := s.borrowingRepo.ListByUser(nil, user.ID)
		if err != nil {
			return nil, err
		}
		stats = append(stats, UserStats{
			ID:               user.ID,
			Username:         user.Username,
			Role:             user.Role,
			TotalBorrowed:    total,
			ActiveBorrowings: active,
			History:          history,
		})
	}
	return stats, nil
}

// DeleteUser removes a user together with their borrowing history. Deletion is
// blocked while any active borrowing exists, since that would strand a lent-out
// copy.
func (s *libraryService) DeleteUser(userID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.GetByID(tx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		active, err := s.borrowingRepo.CountActiveByUser(tx, userID)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrHasActiveBorrowings
		}

		if err := s.borrowingRepo.DeleteByUser(tx, userID); err != nil {
			logger.Errorf("DeleteUser: failed to delete borrowings for user %d: %v", userID, err)
			return err
		}
		return s.userRepo.Delete(tx, userID)
	})
	if err == nil {
		logger.Infof("DeleteUser: deleted user %d with their borrowing history", userID)
	}
	return err
}
