package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parkspot/internal/config"
	"github.com/stwalsh4118/parkspot/internal/database"
	"github.com/stwalsh4118/parkspot/internal/handlers"
	"github.com/stwalsh4118/parkspot/internal/logger"
	"github.com/stwalsh4118/parkspot/internal/middleware"
	"github.com/stwalsh4118/parkspot/internal/repository"
	"github.com/stwalsh4118/parkspot/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
	migrateTimeout  = 60 * time.Second
)

func main() {
	// Load configuration from .env and environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env, cfg.Log.Level)
	log.Info("Starting parking spot API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"log_level":   log.Level().String(),
	})

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	if cfg.Database.Migrate {
		migrateCtx, cancel := context.WithTimeout(ctx, migrateTimeout)
		applied, err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			db.Close()
			log.Fatal("Failed to apply migrations", err, nil)
		}
		log.Info("Migrations applied", map[string]interface{}{
			"applied": applied,
		})
	}

	if err := handlers.RegisterValidations(); err != nil {
		db.Close()
		log.Fatal("Failed to register validations", err, nil)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS))

	handlers.NewHealthHandler(db, cfg.Server.Env).RegisterRoutes(router)

	spotRepo := repository.NewParkingSpotRepository(db.Pool)
	spotService := services.NewParkingSpotService(spotRepo, log, cfg.Pagination)
	handlers.NewParkingSpotHandler(spotService).RegisterRoutes(router.Group("/parking-spot"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
