// Package server exposes the HTTP API: background collection tasks with
// polling, synchronous expense submission, artifact download and health.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autobill/auth"
	"github.com/autobill/browser"
	"github.com/autobill/collect"
	"github.com/autobill/config"
	"github.com/autobill/store"
	"github.com/autobill/submit"
	"github.com/autobill/task"
)

// Config holds the server's runtime settings.
type Config struct {
	Port        int
	DownloadDir string
	// ProcessedDir is the secondary directory the download endpoint also
	// searches; preprocessing jobs drop renamed artifacts there.
	ProcessedDir string
	Headless     bool
	Groupware    submit.Config
}

// Server owns the API layer and the workers it spawns.
type Server struct {
	cfg       Config
	source    *config.Source
	tasks     *task.Manager
	registry  *browser.Registry
	collector *collect.Driver
	db        *store.DB
	logger    *log.Logger
}

// New wires the server with its collaborators. db may be nil; run history is
// then skipped.
func New(cfg Config, source *config.Source, db *store.DB, logger *log.Logger) *Server {
	if cfg.Port <= 0 {
		cfg.Port = 5001
	}
	registry := browser.NewRegistry(logger)
	authenticator := auth.New(registry, browser.Options{
		Headless:    cfg.Headless,
		DownloadDir: cfg.DownloadDir,
	}, logger)
	collector := collect.NewDriver(authenticator, registry,
		browser.NewDownloadLock(cfg.DownloadDir), logger)

	return &Server{
		cfg:       cfg,
		source:    source,
		tasks:     task.NewManager(logger),
		registry:  registry,
		collector: collector,
		db:        db,
		logger:    logger,
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully and closes every live browser.
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.registry.CloseAll()
	}()

	s.logger.Printf("API server listening on :%d", s.cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// RunCollection triggers the collection worker outside the HTTP path, used
// by the monthly schedule.
func (s *Server) RunCollection(company string, rng config.DateRange) string {
	return s.tasks.Start(func(h *task.Handle) {
		s.collectWorker(h, company, rng)
	})
}
