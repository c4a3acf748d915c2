// Package ui provides the web server hosting question pages and the answer
// API.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/answerdesk/internal/inflight"
	"github.com/leapstack-labs/answerdesk/internal/metrics"
	"github.com/leapstack-labs/answerdesk/internal/qa"
	answerFeature "github.com/leapstack-labs/answerdesk/internal/ui/features/answer"
	"github.com/leapstack-labs/answerdesk/internal/ui/notifier"
	"github.com/leapstack-labs/answerdesk/internal/ui/resources"
	"github.com/leapstack-labs/answerdesk/internal/ui/router"
)

// Server is the main UI server.
type Server struct {
	service      *qa.Service
	sessionStore *sessions.CookieStore
	port         int
	dev          bool
	watch        bool
	watchDir     string
	logger       *slog.Logger
	notifier     *notifier.Notifier
	guard        inflight.Guard
	metrics      *metrics.Metrics
	feedback     *answerFeature.Feedback
	author       string
	reloadDelete bool
	reloader     *router.Reloader
}

// Config holds configuration for the UI server.
type Config struct {
	Service       *qa.Service
	Port          int
	Dev           bool
	Watch         bool
	SessionSecret string
	Logger        *slog.Logger
	// Guard limits mutations to one in flight per target. Defaults to an
	// in-memory guard.
	Guard   inflight.Guard
	Metrics *metrics.Metrics

	FeedbackStyle      answerFeature.FeedbackStyle
	DismissAfter       time.Duration
	Author             string
	ReloadOnFileDelete bool
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	guard := cfg.Guard
	if guard == nil {
		guard = inflight.NewMemoryGuard()
	}

	return &Server{
		service:      cfg.Service,
		sessionStore: sessionStore,
		port:         cfg.Port,
		dev:          cfg.Dev,
		watch:        cfg.Watch,
		watchDir:     resources.Dir(),
		logger:       logger,
		notifier:     notifier.New(),
		guard:        guard,
		metrics:      cfg.Metrics,
		feedback:     answerFeature.NewFeedback(cfg.FeedbackStyle, cfg.DismissAfter, cfg.Metrics, logger),
		author:       cfg.Author,
		reloadDelete: cfg.ReloadOnFileDelete,
		reloader:     router.NewReloader(),
	}
}

// Handler builds the server's HTTP handler.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	answer := answerFeature.Config{
		Service:            s.service,
		SessionStore:       s.sessionStore,
		Notifier:           s.notifier,
		Guard:              s.guard,
		Feedback:           s.feedback,
		Metrics:            s.metrics,
		Logger:             s.logger,
		Author:             s.author,
		ReloadOnFileDelete: s.reloadDelete,
		IsDev:              s.IsDev(),
	}
	if err := router.SetupRoutes(r, answer, s.metrics, s.reloader); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start file watcher if enabled
	if s.watch && s.IsDev() && s.watchDir != "" {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// IsDev returns true if running in development mode.
func (s *Server) IsDev() bool {
	return s.dev
}

// Notifier returns the server's notifier for live question updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// watchFiles reloads open pages when a static asset changes.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.watchDir); err != nil {
		s.logger.Error("failed to watch static directory", "error", err)
		// Don't fail - continue without watching
	}

	// Debounce timer
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !resources.IsAsset(event.Name) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("asset changed, reloading pages", "file", name)
				s.reloader.Trigger()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
