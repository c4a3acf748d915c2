// Package csrf protects state-changing requests with a session-bound token
// that clients echo back in the X-CSRFToken header.
package csrf

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

// Names shared with clients.
const (
	CookieName = "csrftoken"
	HeaderName = "X-CSRFToken"
)

const (
	sessionName = "answerdesk"
	sessionKey  = "csrf"
)

// ErrTokenMismatch is reported when the header does not match the session.
var ErrTokenMismatch = errors.New("csrf token missing or invalid")

// Protector issues and verifies tokens.
type Protector struct {
	store  sessions.Store
	logger *slog.Logger
}

// New creates a Protector storing tokens in store.
func New(store sessions.Store, logger *slog.Logger) *Protector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Protector{store: store, logger: logger}
}

// Token returns the session's token, creating one if needed, and mirrors it
// into a script-readable cookie.
func (p *Protector) Token(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := p.store.Get(r, sessionName)
	if err != nil {
		// An undecodable cookie yields a fresh session.
		p.logger.Debug("discarding invalid session", "error", err)
	}

	token, _ := session.Values[sessionKey].(string)
	if token == "" {
		token = uuid.NewString()
		session.Values[sessionKey] = token
		if err := session.Save(r, w); err != nil {
			return "", err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// Verify checks the request header against the session token.
func (p *Protector) Verify(r *http.Request) error {
	session, err := p.store.Get(r, sessionName)
	if err != nil {
		return ErrTokenMismatch
	}
	want, _ := session.Values[sessionKey].(string)
	got := r.Header.Get(HeaderName)
	if want == "" || got == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

// Middleware rejects unsafe requests that fail Verify.
func (p *Protector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if err := p.Verify(r); err != nil {
			p.logger.Warn("rejected request", "method", r.Method, "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   "CSRF-токен отсутствует или неверен",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler issues a token: GET /qa/csrf/.
func (p *Protector) Handler(w http.ResponseWriter, r *http.Request) {
	token, err := p.Token(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}
