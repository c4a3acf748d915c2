// Package term shows the answer panel and its feedback in a terminal.
package term

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	xterm "golang.org/x/term"

	"github.com/leapstack-labs/answerdesk/internal/ui/features/answer"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// Feedback prints feedback messages, one per line. Messages are not
// dismissed; the terminal scrolls them away.
type Feedback struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[core.Severity]lipgloss.Style
}

var prefixes = map[core.Severity]string{
	core.SeveritySuccess: "✓ ",
	core.SeverityError:   "✗ ",
	core.SeverityInfo:    "• ",
}

// NewFeedback creates a Feedback writing to w. Colours are used only when w
// is a terminal.
func NewFeedback(w io.Writer) *Feedback {
	r := lipgloss.NewRenderer(w)
	if !IsTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Feedback{
		w: w,
		styles: map[core.Severity]lipgloss.Style{
			core.SeveritySuccess: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
			core.SeverityError:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
			core.SeverityInfo:    r.NewStyle().Foreground(lipgloss.Color("3")),
		},
	}
}

var _ answer.Notifier = (*Feedback)(nil)

// Notify prints message. The surface is not touched.
func (f *Feedback) Notify(_ context.Context, _ answer.Surface, message string, severity core.Severity) {
	if strings.TrimSpace(message) == "" {
		return
	}
	style, ok := f.styles[severity]
	if !ok {
		style = f.styles[core.SeverityInfo]
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = fmt.Fprintln(f.w, style.Render(prefixes[severity]+message))
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && xterm.IsTerminal(int(f.Fd()))
}
