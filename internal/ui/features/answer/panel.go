package answer

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/answerdesk/internal/dispatch"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// Panel renders mutation results into the answer panel.
type Panel struct {
	feedback Notifier
	logger   *slog.Logger
}

// NewPanel creates a Panel reporting through feedback.
func NewPanel(feedback Notifier, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Panel{feedback: feedback, logger: logger}
}

// RenderFiles rebuilds the file region from files.
func (p *Panel) RenderFiles(_ context.Context, s Surface, questionID int64, files []core.FileDescriptor) error {
	return s.Patch(FileList(questionID, files))
}

// Render moves the panel to the state described by result in one patch:
// body, author, date, file region and button visibility. The file region is
// always rebuilt from result.Files.
func (p *Panel) Render(_ context.Context, s Surface, questionID int64, result core.AnswerMutationResult) error {
	return s.Patch(AnswerState(questionID, result))
}

// Apply renders result and then shows its message: success when the
// question has an answer, info when it was removed.
func (p *Panel) Apply(ctx context.Context, s Surface, questionID int64, result core.AnswerMutationResult) {
	if err := p.Render(ctx, s, questionID, result); err != nil {
		p.logger.Error("failed to render answer panel", "question", questionID, "error", err)
		p.feedback.Notify(ctx, s, dispatch.MsgErrorPrefix+dispatch.MsgUnknownError, core.SeverityError)
		return
	}

	severity := core.SeverityInfo
	if result.HasAnswer {
		severity = core.SeveritySuccess
	}
	p.feedback.Notify(ctx, s, result.Message, severity)
}
