// Package router sets up HTTP routes for the UI server.
package router

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/answerdesk/internal/metrics"
	answerFeature "github.com/leapstack-labs/answerdesk/internal/ui/features/answer"
	"github.com/leapstack-labs/answerdesk/internal/ui/resources"
)

// SetupRoutes configures all routes for the UI server. reload may be nil
// when not running in dev mode.
func SetupRoutes(
	router chi.Router,
	answer answerFeature.Config,
	m *metrics.Metrics,
	reload *Reloader,
) error {
	// Hot reload endpoint for dev mode
	if answer.IsDev && reload != nil {
		reload.setup(router)
	}

	// Static assets
	router.Handle("/static/*", resources.Handler())

	router.Handle("/metrics", m.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Feature routes
	if err := answerFeature.SetupRoutes(router, answer); err != nil {
		return err
	}

	return nil
}

// Reloader tells open dev pages to reload.
type Reloader struct {
	ch   chan struct{}
	once sync.Once
}

// NewReloader creates a Reloader.
func NewReloader() *Reloader {
	return &Reloader{ch: make(chan struct{}, 1)}
}

// Trigger asks one waiting page to reload. Pages reconnect after reloading,
// so every open page is reached in turn.
func (rl *Reloader) Trigger() {
	select {
	case rl.ch <- struct{}{}:
	default:
	}
}

func (rl *Reloader) setup(router chi.Router) {
	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		// A restarted server reloads the first page that reconnects.
		rl.once.Do(reload)
		select {
		case <-rl.ch:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		rl.Trigger()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
