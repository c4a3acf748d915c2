// Package dispatch issues answer and file mutations, interprets the server's
// reply and routes the outcome to a view.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/leapstack-labs/answerdesk/internal/inflight"
	"github.com/leapstack-labs/answerdesk/internal/metrics"
	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// Outcomes of a dispatched mutation.
var (
	ErrUserAborted     = errors.New("mutation aborted by user")
	ErrServerRejected  = errors.New("mutation rejected by server")
	ErrTransportFailed = errors.New("mutation request failed")
	ErrInFlight        = errors.New("mutation already in flight")
)

// User-facing texts.
const (
	PromptDeleteFile   = "Удалить этот файл?"
	PromptDeleteAnswer = "Удалить ответ?"
	MsgFileDeleted     = "Файл удалён"
	MsgErrorPrefix     = "Ошибка: "
	MsgUnknownError    = "Неизвестная ошибка"
	MsgNetworkError    = "Ошибка сети"
)

// Operation labels used for metrics and logs.
const (
	OpDeleteFile   = "delete_file"
	OpSubmitAnswer = "submit_answer"
	OpDeleteAnswer = "delete_answer"
)

// Client sends mutations to the server and returns the raw JSON reply.
// An error means the request did not complete.
type Client interface {
	DeleteFile(ctx context.Context, questionID, fileID int64, token string) ([]byte, error)
	SaveAnswer(ctx context.Context, questionID int64, body string, uploads []qa.Upload, token string) ([]byte, error)
	DeleteAnswer(ctx context.Context, questionID int64, token string) ([]byte, error)
	Snapshot(ctx context.Context, questionID int64) ([]byte, error)
}

// TokenSource supplies the request authentication token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// View shows the outcome of a mutation.
type View interface {
	Notify(ctx context.Context, message string, severity core.Severity)
	// Apply renders a mutation result, including its feedback message.
	Apply(ctx context.Context, result core.AnswerMutationResult)
	// Refresh re-syncs state the dispatcher does not own.
	Refresh(ctx context.Context) error
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Confirmed is a Confirmer for surfaces that already asked the user.
type Confirmed struct{}

// Confirm always returns true.
func (Confirmed) Confirm(context.Context, string) (bool, error) {
	return true, nil
}

// Config holds the collaborators of a Dispatcher.
type Config struct {
	Client  Client
	Tokens  TokenSource
	Confirm Confirmer
	View    View
	Guard   inflight.Guard
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Dispatcher runs mutations on behalf of one view.
type Dispatcher struct {
	client  Client
	tokens  TokenSource
	confirm Confirmer
	view    View
	guard   inflight.Guard
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Dispatcher. Tokens, Confirm and Guard are optional.
func New(cfg Config) *Dispatcher {
	if cfg.Tokens == nil {
		cfg.Tokens = StaticToken("")
	}
	if cfg.Confirm == nil {
		cfg.Confirm = Confirmed{}
	}
	if cfg.Guard == nil {
		cfg.Guard = inflight.NewMemoryGuard()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		client:  cfg.Client,
		tokens:  cfg.Tokens,
		confirm: cfg.Confirm,
		view:    cfg.View,
		guard:   cfg.Guard,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// =============================================================================
// File deletion
// =============================================================================

// DeleteFile asks for confirmation, deletes a file attached to the answer of
// questionID and on success refreshes the view. Every failure except
// ErrUserAborted and ErrInFlight has already been shown to the user when it
// returns.
func (d *Dispatcher) DeleteFile(ctx context.Context, questionID, fileID int64) (err error) {
	start := time.Now()
	defer func() { d.observe(OpDeleteFile, start, err) }()

	ok, err := d.confirm.Confirm(ctx, PromptDeleteFile)
	if err != nil {
		d.logger.Debug("confirmation failed", "file", fileID, "error", err)
		return ErrUserAborted
	}
	if !ok {
		return ErrUserAborted
	}

	release, err := d.guard.Acquire(ctx, "file:"+strconv.FormatInt(fileID, 10))
	if err != nil {
		return d.guardError(ctx, err)
	}
	defer release()

	reply, err := d.client.DeleteFile(ctx, questionID, fileID, d.token(ctx))
	if err != nil {
		d.logger.Warn("delete file request failed", "file", fileID, "error", err)
		d.view.Notify(ctx, MsgNetworkError, core.SeverityError)
		return fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}

	status, err := decodeStatus(reply)
	if err != nil {
		d.logger.Warn("malformed delete file reply", "file", fileID, "error", err)
		d.view.Notify(ctx, MsgErrorPrefix+MsgUnknownError, core.SeverityError)
		return fmt.Errorf("%w: %v", ErrServerRejected, err)
	}
	if !status.Success {
		d.view.Notify(ctx, rejectionText(status.Error), core.SeverityError)
		return fmt.Errorf("%w: %s", ErrServerRejected, status.Error)
	}

	d.view.Notify(ctx, MsgFileDeleted, core.SeveritySuccess)
	if err := d.view.Refresh(ctx); err != nil {
		d.logger.Warn("refresh after file delete failed", "file", fileID, "error", err)
	}
	return nil
}

// =============================================================================
// Answer mutations
// =============================================================================

// SubmitAnswer creates or replaces the answer of a question and applies the
// resulting state to the view.
func (d *Dispatcher) SubmitAnswer(ctx context.Context, questionID int64, body string, uploads []qa.Upload) (err error) {
	start := time.Now()
	defer func() { d.observe(OpSubmitAnswer, start, err) }()

	return d.mutateAnswer(ctx, questionID, func(token string) ([]byte, error) {
		return d.client.SaveAnswer(ctx, questionID, body, uploads, token)
	})
}

// DeleteAnswer removes the answer of a question and applies the resulting
// state to the view.
func (d *Dispatcher) DeleteAnswer(ctx context.Context, questionID int64) (err error) {
	start := time.Now()
	defer func() { d.observe(OpDeleteAnswer, start, err) }()

	return d.mutateAnswer(ctx, questionID, func(token string) ([]byte, error) {
		return d.client.DeleteAnswer(ctx, questionID, token)
	})
}

func (d *Dispatcher) mutateAnswer(ctx context.Context, questionID int64, send func(token string) ([]byte, error)) error {
	release, err := d.guard.Acquire(ctx, "answer:"+strconv.FormatInt(questionID, 10))
	if err != nil {
		return d.guardError(ctx, err)
	}
	defer release()

	reply, err := send(d.token(ctx))
	if err != nil {
		d.logger.Warn("answer request failed", "question", questionID, "error", err)
		d.view.Notify(ctx, MsgNetworkError, core.SeverityError)
		return fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}

	result, err := decodeResult(reply)
	if err != nil {
		var rejected *rejection
		if errors.As(err, &rejected) {
			d.view.Notify(ctx, rejectionText(rejected.text), core.SeverityError)
			return fmt.Errorf("%w: %s", ErrServerRejected, rejected.text)
		}
		d.logger.Warn("malformed answer reply", "question", questionID, "error", err)
		d.view.Notify(ctx, MsgErrorPrefix+MsgUnknownError, core.SeverityError)
		return fmt.Errorf("%w: %v", ErrServerRejected, err)
	}

	d.view.Apply(ctx, result)
	return nil
}

// Snapshot fetches the current answer state without changing it.
func (d *Dispatcher) Snapshot(ctx context.Context, questionID int64) (core.AnswerMutationResult, error) {
	reply, err := d.client.Snapshot(ctx, questionID)
	if err != nil {
		return core.AnswerMutationResult{}, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}
	result, err := decodeResult(reply)
	if err != nil {
		return core.AnswerMutationResult{}, fmt.Errorf("%w: %v", ErrServerRejected, err)
	}
	return result, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (d *Dispatcher) token(ctx context.Context) string {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		d.logger.Debug("no request token, sending unauthenticated", "error", err)
		return ""
	}
	return token
}

// guardError maps a failed Acquire. A busy key is silent; the first
// mutation will report. An unreachable guard is reported like a network
// failure and the mutation is not sent.
func (d *Dispatcher) guardError(ctx context.Context, err error) error {
	if errors.Is(err, inflight.ErrBusy) {
		return ErrInFlight
	}
	d.logger.Error("in-flight guard unavailable", "error", err)
	d.view.Notify(ctx, MsgNetworkError, core.SeverityError)
	return fmt.Errorf("%w: %v", ErrTransportFailed, err)
}

func (d *Dispatcher) observe(op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrUserAborted):
		outcome = metrics.OutcomeAborted
	case errors.Is(err, ErrInFlight):
		outcome = metrics.OutcomeBusy
	case errors.Is(err, ErrTransportFailed):
		outcome = metrics.OutcomeNetwork
	default:
		outcome = metrics.OutcomeRejected
	}
	d.metrics.ObserveMutation(op, outcome, time.Since(start))
	d.logger.Debug("mutation finished", "operation", op, "outcome", outcome, "elapsed", time.Since(start))
}

func rejectionText(serverError string) string {
	if serverError == "" {
		serverError = MsgUnknownError
	}
	return MsgErrorPrefix + serverError
}

type rejection struct {
	text string
}

func (r *rejection) Error() string {
	return "rejected: " + r.text
}

func decodeStatus(data []byte) (core.StatusResponse, error) {
	var raw struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.StatusResponse{}, err
	}
	if raw.Success == nil {
		return core.StatusResponse{}, errors.New("missing success")
	}
	return core.StatusResponse{Success: *raw.Success, Error: raw.Error}, nil
}

// decodeResult accepts a MutationReply. A reply without a success flag is
// read as a bare mutation result.
func decodeResult(data []byte) (core.AnswerMutationResult, error) {
	var raw struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.AnswerMutationResult{}, fmt.Errorf("%w: %v", core.ErrMalformedResult, err)
	}
	if raw.Success != nil && !*raw.Success {
		return core.AnswerMutationResult{}, &rejection{text: raw.Error}
	}
	return core.DecodeMutationResult(data)
}
