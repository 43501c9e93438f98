package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"minilibrary/internal/logger"
	"minilibrary/internal/models"
	"minilibrary/internal/repositories"
)

var (
	// ErrUserExists is returned when registration collides with an existing
	// username or email.
	ErrUserExists = errors.New("Username or email already in use.")

	// ErrInvalidCredentials is returned for a bad username/password pair. The
	// two cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("Invalid username or password.")
)

// AuthService covers registration and credential checks.
type AuthService interface {
	Register(username, email, password string) (*models.User, error)
	Authenticate(username, password string) (*models.User, error)
}

type authService struct {
	db       *gorm.DB
	userRepo repositories.UserRepository
}

func NewAuthService(db *gorm.DB, userRepo repositories.UserRepository) AuthService {
	return &authService{db: db, userRepo: userRepo}
}

// Register creates a member account with a bcrypt-hashed secret. New accounts
// always get the plain user role; admins exist only through seeding.
func (s *authService) Register(username, email, password string) (*models.User, error) {
	var created *models.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.userRepo.ExistsByUsernameOrEmail(tx, username, email)
		if err != nil {
			return err
		}
		if exists {
			return ErrUserExists
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := &models.User{
			Username:       username,
			Email:          email,
			HashedPassword: string(hash),
			Role:           models.UserRoleUser,
		}
		if err := s.userRepo.Create(tx, user); err != nil {
			logger.Errorf("Register: failed to create user %q: %v", username, err)
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Register: created user %q (id=%d)", created.Username, created.ID)
	return created, nil
}

// Authenticate verifies the username/password pair against the stored hash.
func (s *authService) Authenticate(username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(nil, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		logger.Warningf("Authenticate: wrong password for user %q", username)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
