package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"minilibrary/internal/config"
	"minilibrary/internal/database"
	"minilibrary/internal/handlers"
	"minilibrary/internal/logger"
	"minilibrary/internal/repositories"
	"minilibrary/internal/services"
	"minilibrary/internal/session"
)

func main() {
	cfg := config.Load()
	logger.InitLogger(cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		logger.Errorf("failed to connect database: %v", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Errorf("failed to migrate database: %v", err)
		os.Exit(1)
	}
	if err := database.Seed(db); err != nil {
		logger.Errorf("failed to seed database: %v", err)
		os.Exit(1)
	}

	userRepo := repositories.NewUserRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	borrowingRepo := repositories.NewBorrowingRepository(db)

	librarySvc := services.NewLibraryService(db, userRepo, bookRepo, borrowingRepo)
	authSvc := services.NewAuthService(db, userRepo)

	store, err := session.NewStore(cfg)
	if err != nil {
		logger.Errorf("failed to create session store: %v", err)
		os.Exit(1)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestID())
	router.Use(sessions.Sessions(session.CookieName, store))
	router.LoadHTMLGlob(cfg.TemplateGlob)

	handlers.RegisterRoutes(router, librarySvc, authSvc)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	logger.Infof("Starting server on %s", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorf("server error: %v", err)
		os.Exit(1)
	}
}
