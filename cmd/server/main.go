// cmd/server/main.go
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
	"github.com/sirupsen/logrus"

	"github.com/cubitdynamics/cubit-backend/internal/config"
	"github.com/cubitdynamics/cubit-backend/internal/database"
	"github.com/cubitdynamics/cubit-backend/internal/i18n"
	"github.com/cubitdynamics/cubit-backend/internal/metrics"
	"github.com/cubitdynamics/cubit-backend/internal/router"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}

	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.Fatal("Failed to initialize i18n: ", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.Fatal("Failed to initialize database: ", err)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logrus.Fatal("Failed to run migrations: ", err)
	}

	if err := database.SeedInitialData(db, cfg.Admin); err != nil {
		logrus.Fatal("Failed to seed initial data: ", err)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	svc, err := router.NewServices(db, cfg, recorder)
	if err != nil {
		logrus.Fatal("Failed to initialize services: ", err)
	}

	var sweeper *services.ExpirySweeper
	if cfg.License.ExpirySweep != "" {
		loc, _ := cfg.License.Location()
		sweeper, err = services.NewExpirySweeper(svc.License, cfg.License.ExpirySweep, loc, recorder)
		if err != nil {
			logrus.Fatal("Failed to schedule expiry sweep: ", err)
		}
		sweeper.Start()
	}

	r := router.Initialize(db, cfg, svc, recorder)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sweeper != nil {
		sweeper.Stop(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Error("Server forced to shutdown: ", err)
	}

	logrus.Info("Server exited")
}
