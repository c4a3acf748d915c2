package answer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/answerdesk/internal/metrics"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// Dismissal delay bounds.
const (
	MinDismissAfter     = 3 * time.Second
	MaxDismissAfter     = 5 * time.Second
	DefaultDismissAfter = 5 * time.Second
)

// Notifier shows a feedback message on a surface.
type Notifier interface {
	Notify(ctx context.Context, s Surface, message string, severity core.Severity)
}

// Feedback appends self-dismissing messages to the page's feedback region.
// Each message gets its own element and timer, so overlapping messages
// dismiss independently.
type Feedback struct {
	style        FeedbackStyle
	dismissAfter time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewFeedback creates a Feedback. Unknown styles fall back to toast and the
// delay is clamped to [MinDismissAfter, MaxDismissAfter].
func NewFeedback(style FeedbackStyle, dismissAfter time.Duration, m *metrics.Metrics, logger *slog.Logger) *Feedback {
	if style != StyleBanner {
		style = StyleToast
	}
	switch {
	case dismissAfter <= 0:
		dismissAfter = DefaultDismissAfter
	case dismissAfter < MinDismissAfter:
		dismissAfter = MinDismissAfter
	case dismissAfter > MaxDismissAfter:
		dismissAfter = MaxDismissAfter
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Feedback{style: style, dismissAfter: dismissAfter, metrics: m, logger: logger}
}

// Style returns the configured style.
func (f *Feedback) Style() FeedbackStyle {
	return f.style
}

// DismissAfter returns the configured dismissal delay.
func (f *Feedback) DismissAfter() time.Duration {
	return f.dismissAfter
}

// Notify shows message. It never fails: rendering errors are logged. Blank
// messages are skipped.
func (f *Feedback) Notify(_ context.Context, s Surface, message string, severity core.Severity) {
	if strings.TrimSpace(message) == "" {
		return
	}

	id := "feedback-" + uuid.NewString()
	if err := s.Append("#"+IDFeedback, Message(id, message, severity, f.style, f.dismissAfter)); err != nil {
		f.logger.Warn("failed to show feedback", "severity", severity, "error", err)
		return
	}
	f.metrics.CountFeedback(severity.String())
}
