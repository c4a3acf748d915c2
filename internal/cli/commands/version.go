package commands

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo identifies an answerdesk build.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"go"`
	Platform  string `json:"platform"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	if info.GoVersion == "" {
		info.GoVersion = runtime.Version()
	}
	if info.Platform == "" {
		info.Platform = runtime.GOOS + "/" + runtime.GOARCH
	}

	var short, asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the answerdesk build: release version, git commit, build date and
the Go toolchain it was built with.

The same binary serves the question pages (answerdesk serve) and runs answer
and file mutations from the terminal, so include this output when reporting
a panel that falls out of sync.`,
		Example: `  answerdesk version
  answerdesk version --short
  answerdesk version --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(w, info.Version)
				return err
			case asJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, _ = fmt.Fprintf(w, "answerdesk v%s\n", info.Version)
			_, _ = fmt.Fprintln(w, "Question answer panel server and CLI")
			_, _ = fmt.Fprintf(w, "  commit:   %s\n", info.GitCommit)
			_, _ = fmt.Fprintf(w, "  built:    %s\n", info.BuildDate)
			_, err := fmt.Fprintf(w, "  go:       %s %s\n", info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")
	return cmd
}
