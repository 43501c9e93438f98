package models

import (
	"time"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

type BorrowingStatus string

const (
	BorrowingStatusBorrowed BorrowingStatus = "borrowed"
	BorrowingStatusReturned BorrowingStatus = "returned"
)

type User struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	Username       string   `gorm:"size:255;uniqueIndex;not null" json:"username"`
	Email          string   `gorm:"size:255;uniqueIndex;not null" json:"email"`
	HashedPassword string   `gorm:"size:255;not null" json:"-"`
	Role           UserRole `gorm:"size:32;not null;default:user" json:"role"`

	Borrowings []Borrowing `gorm:"foreignKey:UserID" json:"-"`
}

type Book struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Title           string `gorm:"size:512;not null;index" json:"title"`
	Author          string `gorm:"size:512;not null;index" json:"author"`
	Genre           string `gorm:"size:255;index" json:"genre"`
	TotalCopies     int    `gorm:"not null;default:1" json:"total_copies"`
	AvailableCopies int    `gorm:"not null;default:1" json:"available_copies"`

	Borrowings []Borrowing `gorm:"foreignKey:BookID" json:"-"`
}

// Borrowing is a log entry linking one user and one book. At most one active
// (status=borrowed) row may exist per (user, book) pair.
type Borrowing struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"not null;index" json:"user_id"`
	User       User            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	BookID     uint            `gorm:"not null;index" json:"book_id"`
	Book       Book            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	BorrowDate time.Time       `gorm:"not null" json:"borrow_date"`
	ReturnDate *time.Time      `json:"return_date"`
	Status     BorrowingStatus `gorm:"size:32;not null;default:borrowed;index" json:"status"`
}
