package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/answerdesk/internal/cli/config"
	"github.com/leapstack-labs/answerdesk/internal/dispatch"
	"github.com/leapstack-labs/answerdesk/internal/inflight"
	"github.com/leapstack-labs/answerdesk/internal/metrics"
	"github.com/leapstack-labs/answerdesk/internal/term"
	answerFeature "github.com/leapstack-labs/answerdesk/internal/ui/features/answer"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// ClientOptions selects how mutation commands reach the answer state.
type ClientOptions struct {
	Local bool
	Yes   bool
}

func addClientFlags(cmd *cobra.Command, opts *ClientOptions) {
	cmd.Flags().String("server", "", "Server URL (default: http://localhost:8765)")
	cmd.Flags().Duration("timeout", 0, "Request timeout (default: 30s)")
	cmd.Flags().String("author", "", "Author name for saved answers")
	cmd.Flags().BoolVar(&opts.Local, "local", false, "Change the database directly instead of going through the server")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")
}

// panelSession shows one question's answer panel in the terminal and runs
// mutations against it.
type panelSession struct {
	questionID int64
	dispatcher *dispatch.Dispatcher
	view       *answerFeature.View
	surface    *term.Surface
	confirm    *term.Confirmer
	out        io.Writer
}

// openPanelSession connects to the server, or to the database with
// --local, and loads the current panel of questionID.
func openPanelSession(cmd *cobra.Command, opts *ClientOptions, questionID int64) (*panelSession, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	author := cfg.GetUIConfig().Author

	var (
		client  dispatch.Client
		tokens  dispatch.TokenSource
		guard   inflight.Guard
		cleanup = func() {}
	)
	if opts.Local {
		cmdCtx, done, err := NewCommandContext(cmd)
		if err != nil {
			return nil, nil, err
		}
		client = dispatch.NewLocalClient(cmdCtx.Service, author, logger, nil)
		guard = cmdCtx.Guard
		cleanup = done
	} else {
		cc := cfg.GetClientConfig()
		c, err := dispatch.NewHTTPClient(cc.ServerURL, cc.Timeout, author)
		if err != nil {
			return nil, nil, err
		}
		client, tokens = c, c
	}

	out := cmd.OutOrStdout()
	surface, err := term.NewSurface(questionID, core.AnswerMutationResult{})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	confirm := term.NewConfirmer(io.NopCloser(cmd.InOrStdin()), nopWriteCloser{out}, opts.Yes)

	s := &panelSession{questionID: questionID, surface: surface, confirm: confirm, out: out}
	panel := answerFeature.NewPanel(term.NewFeedback(out), logger)
	s.view = answerFeature.NewView(panel, surface, questionID, answerFeature.ViewOptions{
		Snapshot: func(ctx context.Context) (core.AnswerMutationResult, error) {
			return s.dispatcher.Snapshot(ctx, questionID)
		},
	})
	s.dispatcher = dispatch.New(dispatch.Config{
		Client:  client,
		Tokens:  tokens,
		Confirm: confirm,
		View:    s.view,
		Guard:   guard,
		Metrics: metrics.New(),
		Logger:  logger,
	})

	if err := s.view.Refresh(cmd.Context()); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load question %d: %w", questionID, err)
	}
	return s, cleanup, nil
}

// print writes the panel.
func (s *panelSession) print() error {
	_, _ = fmt.Fprintln(s.out)
	return s.surface.Print(s.out)
}

// finish prints the panel after a mutation. A declined confirmation is not
// an error; other failures were already shown as feedback.
func (s *panelSession) finish(err error) error {
	if errors.Is(err, dispatch.ErrUserAborted) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.print()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}
