package commands

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/answerdesk/internal/metrics"
	"github.com/leapstack-labs/answerdesk/internal/ui"
	answerFeature "github.com/leapstack-labs/answerdesk/internal/ui/features/answer"
)

// devSessionSecret is used when no secret is configured.
const devSessionSecret = "answerdesk-dev-secret-change-in-production" //nolint:gosec

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Open bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the question page server",
		Long: `Start a web server hosting question pages with a live answer panel.

The server provides:
- Question pages with the answer panel and attached files
- Answer and file mutations over Datastar SSE
- The JSON answer API used by the CLI
- Prometheus metrics on /metrics`,
		Example: `  # Start on the configured port
  answerdesk serve

  # Start on a custom port with hot reload of static assets
  answerdesk serve --port 3000 --dev`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().Int("port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().Bool("dev", false, "Development mode: reload pages when static assets change")
	cmd.Flags().Bool("watch", true, "Watch static assets in development mode")
	cmd.Flags().String("author", "", "Author name for answers saved through the page")
	cmd.Flags().String("feedback-style", "", "Feedback style (toast|banner)")
	cmd.Flags().String("redis", "", "Redis address for the shared in-flight guard")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the browser")

	_ = cmd.RegisterFlagCompletionFunc("feedback-style", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"toast", "banner"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	serverCfg := cfg.GetServerConfig()
	uiCfg := cfg.GetUIConfig()

	secret := serverCfg.SessionSecret
	if secret == "" {
		cmdCtx.Logger.Warn("server.session_secret not set, using the development secret")
		secret = devSessionSecret
	}

	server := ui.NewServer(ui.Config{
		Service:            cmdCtx.Service,
		Port:               serverCfg.Port,
		Dev:                serverCfg.Dev,
		Watch:              serverCfg.Watch,
		SessionSecret:      secret,
		Logger:             cmdCtx.Logger,
		Guard:              cmdCtx.Guard,
		Metrics:            metrics.New(),
		FeedbackStyle:      answerFeature.FeedbackStyle(uiCfg.FeedbackStyle),
		DismissAfter:       uiCfg.DismissAfter,
		Author:             uiCfg.Author,
		ReloadOnFileDelete: uiCfg.ReloadOnFileDelete,
	})

	url := fmt.Sprintf("http://localhost:%d", serverCfg.Port)
	if opts.Open {
		go openBrowser(url)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting server on %s\n", url)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return server.Serve(ctx)
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
