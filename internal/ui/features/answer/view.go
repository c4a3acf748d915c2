package answer

import (
	"context"

	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// SnapshotFunc loads the current answer state of the viewed question.
type SnapshotFunc func(ctx context.Context) (core.AnswerMutationResult, error)

// View binds a panel to one surface showing one question. It is the
// dispatcher's view of the page.
type View struct {
	panel      *Panel
	feedback   Notifier
	surface    Surface
	questionID int64
	reload     bool
	snapshot   SnapshotFunc
}

// ViewOptions configures how a View refreshes.
type ViewOptions struct {
	// Reload makes Refresh reload the whole page. Otherwise Refresh
	// re-renders the panel from Snapshot.
	Reload   bool
	Snapshot SnapshotFunc
}

// NewView creates a View.
func NewView(panel *Panel, surface Surface, questionID int64, opts ViewOptions) *View {
	return &View{
		panel:      panel,
		feedback:   panel.feedback,
		surface:    surface,
		questionID: questionID,
		reload:     opts.Reload || opts.Snapshot == nil,
		snapshot:   opts.Snapshot,
	}
}

// Notify shows a feedback message.
func (v *View) Notify(ctx context.Context, message string, severity core.Severity) {
	v.feedback.Notify(ctx, v.surface, message, severity)
}

// Apply renders a mutation result and its message.
func (v *View) Apply(ctx context.Context, result core.AnswerMutationResult) {
	v.panel.Apply(ctx, v.surface, v.questionID, result)
}

// Refresh reloads the page or re-syncs the panel in place.
func (v *View) Refresh(ctx context.Context) error {
	if v.reload {
		return v.surface.Reload()
	}
	result, err := v.snapshot(ctx)
	if err != nil {
		return err
	}
	return v.panel.Render(ctx, v.surface, v.questionID, result)
}
