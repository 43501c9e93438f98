package database

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"minilibrary/internal/config"
	"minilibrary/internal/logger"
	"minilibrary/internal/models"
)

// Open connects to PostgreSQL when DATABASE_URL is configured, otherwise to a
// local SQLite file, and tunes the connection pool.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.DatabaseURL != "" {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	} else {
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, mkErr
			}
		}
		dsn := cfg.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL"
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates the three tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Book{},
		&models.Borrowing{},
	)
}

// Seed populates the default accounts and the starter catalog on first run.
// It is a no-op whenever the users table already has rows.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Debug("Seed: users table not empty, skipping")
		return nil
	}

	logger.Info("Seed: populating default users and catalog")

	return db.Transaction(func(tx *gorm.DB) error {
		adminHash, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		userHash, err := bcrypt.GenerateFromPassword([]byte("userpass"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		users := []models.User{
			{Username: "admin", Email: "admin@library.com", HashedPassword: string(adminHash), Role: models.UserRoleAdmin},
			{Username: "user", Email: "user@library.com", HashedPassword: string(userHash), Role: models.UserRoleUser},
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}

		books := []models.Book{
			{Title: "Introduction to Machine Learning with Python", Author: "Andreas C. Müller & Sarah Guido", Genre: "Computer Science", TotalCopies: 10, AvailableCopies: 10},
			{Title: "Superintelligence: Paths, Dangers, Strategies", Author: "Nick Bostrom", Genre: "AI Ethics", TotalCopies: 3, AvailableCopies: 3},
			{Title: "AI Engineering", Author: "Chip Huyen", Genre: "Computer Science", TotalCopies: 8, AvailableCopies: 8},
			{Title: "—All You Zombies—", Author: "Robert A. Heinlein", Genre: "Science Fiction", TotalCopies: 6, AvailableCopies: 6},
			{Title: "CHAINSAW MAN - Chapter 1", Author: "Tatsuki Fujimoto", Genre: "Dark Fantasy", TotalCopies: 4, AvailableCopies: 4},
			{Title: "Do Androids Dream of Electric Sheep?", Author: "Philip K. Dick", Genre: "Science Fiction", TotalCopies: 5, AvailableCopies: 5},
			{Title: "Deep Learning", Author: "Ian Goodfellow, Yoshua Bengio, & Aaron Courville", Genre: "Computer Science", TotalCopies: 15, AvailableCopies: 15},
			{Title: "Frieren: Beyond Journey's End - Vol. 1", Author: "Kanehito Yamada", Genre: "Fantasy", TotalCopies: 1, AvailableCopies: 1},
		}
		return tx.Create(&books).Error
	})
}
