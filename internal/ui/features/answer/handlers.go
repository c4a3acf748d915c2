package answer

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/answerdesk/internal/dispatch"
	"github.com/leapstack-labs/answerdesk/internal/inflight"
	"github.com/leapstack-labs/answerdesk/internal/metrics"
	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/internal/ui/csrf"
	"github.com/leapstack-labs/answerdesk/internal/ui/notifier"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// maxFormMemory is kept in memory when parsing uploads; the rest spills to
// temporary files.
const maxFormMemory = 8 << 20

// Config holds the dependencies of the answer feature.
type Config struct {
	Service      *qa.Service
	SessionStore sessions.Store
	Notifier     *notifier.Notifier
	Guard        inflight.Guard
	Feedback     Notifier
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	// Author is recorded for answers saved from the page.
	Author string
	// ReloadOnFileDelete reloads the page after a file is deleted instead
	// of re-rendering the panel in place.
	ReloadOnFileDelete bool
	IsDev              bool
}

// Handlers provides HTTP handlers for the answer feature.
type Handlers struct {
	svc                *qa.Service
	csrf               *csrf.Protector
	notifier           *notifier.Notifier
	guard              inflight.Guard
	panel              *Panel
	metrics            *metrics.Metrics
	logger             *slog.Logger
	author             string
	reloadOnFileDelete bool
	isDev              bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg Config) *Handlers {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notifier.New()
	}
	if cfg.Guard == nil {
		cfg.Guard = inflight.NewMemoryGuard()
	}
	if cfg.Feedback == nil {
		cfg.Feedback = NewFeedback(StyleToast, DefaultDismissAfter, cfg.Metrics, cfg.Logger)
	}
	return &Handlers{
		svc:                cfg.Service,
		csrf:               csrf.New(cfg.SessionStore, cfg.Logger),
		notifier:           cfg.Notifier,
		guard:              cfg.Guard,
		panel:              NewPanel(cfg.Feedback, cfg.Logger),
		metrics:            cfg.Metrics,
		logger:             cfg.Logger,
		author:             cfg.Author,
		reloadOnFileDelete: cfg.ReloadOnFileDelete,
		isDev:              cfg.IsDev,
	}
}

// =============================================================================
// Page
// =============================================================================

// QuestionPage renders the question page with the current answer state.
func (h *Handlers) QuestionPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	h.svc.RecordView(ctx, id)
	q, err := h.svc.Question(ctx, id)
	if err != nil {
		h.httpError(w, err)
		return
	}
	result, err := h.svc.Snapshot(ctx, id)
	if err != nil {
		h.httpError(w, err)
		return
	}
	token, err := h.csrf.Token(w, r)
	if err != nil {
		h.httpError(w, err)
		return
	}

	data := PageData{Question: q, Result: result, CSRFToken: token, IsDev: h.isDev}
	if err := Page(data).Render(ctx, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Updates is the long-lived SSE endpoint of a question page. It re-renders
// the panel whenever another request changed the question.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	sse := datastar.NewSSE(w, r)
	surface := NewSSESurface(sse)

	updates := h.notifier.Subscribe(id)
	defer h.notifier.Unsubscribe(id, updates)
	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			result, err := h.svc.Snapshot(ctx, id)
			if err == nil {
				err = h.panel.Render(ctx, surface, id, result)
			}
			if err != nil {
				_ = sse.ConsoleError(err)
				// Keep streaming; the next change may succeed.
			}
		}
	}
}

// =============================================================================
// SSE actions
// =============================================================================

// SubmitAnswer saves the answer posted from the page form.
func (h *Handlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	// Read the form BEFORE creating SSE (SSE consumes the request body)
	form, err := readAnswerForm(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.rejectSSE(r.Context(), sse, err)
		return
	}
	defer form.close()

	_ = h.dispatcher(sse, id).SubmitAnswer(r.Context(), id, form.answer, form.uploads)
}

// DeleteAnswer removes the answer. The page asked for confirmation.
func (h *Handlers) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)
	_ = h.dispatcher(sse, id).DeleteAnswer(r.Context(), id)
}

// DeleteFile removes one attachment. The page asked for confirmation.
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "fileID")
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)
	_ = h.dispatcher(sse, id).DeleteFile(r.Context(), id, fileID)
}

func (h *Handlers) dispatcher(sse *datastar.ServerSentEventGenerator, questionID int64) *dispatch.Dispatcher {
	view := NewView(h.panel, NewSSESurface(sse), questionID, ViewOptions{
		Reload: h.reloadOnFileDelete,
		Snapshot: func(ctx context.Context) (core.AnswerMutationResult, error) {
			return h.svc.Snapshot(ctx, questionID)
		},
	})
	return dispatch.New(dispatch.Config{
		Client:  dispatch.NewLocalClient(h.svc, h.author, h.logger, h.notifier.Broadcast),
		Confirm: dispatch.Confirmed{},
		View:    view,
		Guard:   h.guard,
		Metrics: h.metrics,
		Logger:  h.logger,
	})
}

func (h *Handlers) rejectSSE(ctx context.Context, sse *datastar.ServerSentEventGenerator, err error) {
	h.logger.Warn("bad answer form", "error", err)
	h.panel.feedback.Notify(ctx, NewSSESurface(sse), dispatch.MsgErrorPrefix+userMessage(err), core.SeverityError)
	_ = sse.ConsoleError(err)
}

// =============================================================================
// Helpers
// =============================================================================

type answerForm struct {
	answer  string
	action  string
	author  string
	uploads []qa.Upload
	files   []multipart.File
	form    *multipart.Form
}

func (f *answerForm) close() {
	for _, file := range f.files {
		_ = file.Close()
	}
	if f.form != nil {
		_ = f.form.RemoveAll()
	}
}

// readAnswerForm reads a multipart or urlencoded form, or JSON signals.
func readAnswerForm(r *http.Request) (*answerForm, error) {
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, errors.Join(errBadRequest, err)
		}
		f := &answerForm{
			answer: r.FormValue("answer"),
			action: r.FormValue("action"),
			author: r.FormValue("author"),
			form:   r.MultipartForm,
		}
		for _, fh := range r.MultipartForm.File["attachments"] {
			if fh.Filename == "" {
				continue
			}
			file, err := fh.Open()
			if err != nil {
				f.close()
				return nil, err
			}
			f.files = append(f.files, file)
			f.uploads = append(f.uploads, qa.Upload{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Body:        file,
			})
		}
		return f, nil

	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return nil, errors.Join(errBadRequest, err)
		}
		return &answerForm{
			answer: r.FormValue("answer"),
			action: r.FormValue("action"),
			author: r.FormValue("author"),
		}, nil

	default:
		var req Signals
		if err := datastar.ReadSignals(r, &req); err != nil {
			return nil, errors.Join(errBadRequest, err)
		}
		return &answerForm{answer: req.Answer, action: req.Action, author: req.Author}, nil
	}
}

var errBadRequest = errors.New("malformed request")

const msgBadRequest = "Некорректные данные запроса"

func userMessage(err error) string {
	if errors.Is(err, errBadRequest) {
		return msgBadRequest
	}
	return qa.UserMessage(err)
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid "+key, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handlers) httpError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	http.Error(w, userMessage(err), status)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), qa.IsUserError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
