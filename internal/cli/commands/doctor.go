package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/answerdesk/internal/cli/config"
	"github.com/leapstack-labs/answerdesk/internal/inflight"
)

// checkTimeout bounds each network check.
const checkTimeout = 3 * time.Second

// Check statuses.
const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "error"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json, yaml
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the installation",
		Long: `Check everything answerdesk depends on:
- Database schema
- Attachment storage
- In-flight guard (Redis, when configured)
- The server used by the answer and file commands`,
		Example: `  # Run all checks
  answerdesk doctor

  # Output as JSON
  answerdesk doctor --format json`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			switch opts.Format {
			case "text", "json", "yaml":
				return nil
			}
			return fmt.Errorf("unknown format %q (text, json or yaml)", opts.Format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "text", "Output format: text, json, yaml")
	cmd.Flags().String("server", "", "Server URL to check")
	cmd.Flags().String("redis", "", "Redis address to check")

	return cmd
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	Name    string `json:"name" yaml:"name"`
	Status  string `json:"status" yaml:"status"` // "pass", "warn", "error"
	Details string `json:"details" yaml:"details"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cfg := getConfig()
	ctx := cmd.Context()

	checks := []HealthCheck{
		checkDatabase(cmd, cfg),
		checkStorage(ctx, cfg),
		checkGuard(ctx, cfg),
		checkServer(ctx, cfg),
	}

	w := cmd.OutOrStdout()
	var err error
	switch opts.Format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(checks)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(checks); err == nil {
			err = enc.Close()
		}
	default:
		renderChecks(w, checks)
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, c := range checks {
		if c.Status == statusFail {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}

func renderChecks(w io.Writer, checks []HealthCheck) {
	titleCaser := cases.Title(language.English)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Check", "Status", "Details"})
	for _, c := range checks {
		t.AppendRow(table.Row{c.Name, titleCaser.String(c.Status), c.Details})
	}
	t.Render()
}

func checkDatabase(cmd *cobra.Command, cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "database"}
	store, err := openStore(cfg, config.GetLogger(cmd.Context()))
	if err != nil {
		check.Status, check.Details = statusFail, err.Error()
		return check
	}
	defer func() { _ = store.Close() }()

	version, err := store.GetMigrationVersion()
	if err != nil {
		check.Status, check.Details = statusFail, err.Error()
		return check
	}
	check.Status = statusPass
	check.Details = fmt.Sprintf("%s, schema version %d", cfg.Database, version)
	return check
}

func checkStorage(ctx context.Context, cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "storage"}
	st := cfg.GetStorageConfig()

	if _, err := openBlobStore(ctx, cfg); err != nil {
		check.Status, check.Details = statusFail, err.Error()
		return check
	}
	if st.Backend == config.StorageS3 {
		check.Status = statusPass
		check.Details = fmt.Sprintf("s3 bucket %s (%s)", st.S3.Bucket, st.S3.Region)
		return check
	}

	probe, err := os.CreateTemp(st.LocalDir, ".doctor-*")
	if err != nil {
		check.Status, check.Details = statusFail, fmt.Sprintf("%s is not writable: %v", st.LocalDir, err)
		return check
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	check.Status, check.Details = statusPass, st.LocalDir
	return check
}

func checkGuard(ctx context.Context, cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "inflight guard"}
	ic := cfg.GetInflightConfig()
	if ic.RedisAddr == "" {
		check.Status, check.Details = statusPass, "in process"
		return check
	}

	guard := inflight.NewRedisGuard(ic.RedisAddr, ic.TTL, nil)
	defer func() { _ = guard.Close() }()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := guard.Ping(ctx); err != nil {
		check.Status, check.Details = statusFail, fmt.Sprintf("redis %s: %v", ic.RedisAddr, err)
		return check
	}
	check.Status, check.Details = statusPass, "redis "+ic.RedisAddr
	return check
}

// checkServer only warns: the server is optional for local commands.
func checkServer(ctx context.Context, cfg *config.Config) HealthCheck {
	check := HealthCheck{Name: "server"}
	url := strings.TrimRight(cfg.GetClientConfig().ServerURL, "/") + "/healthz"

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		check.Status, check.Details = statusFail, err.Error()
		return check
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		check.Status, check.Details = statusWarn, fmt.Sprintf("%s unreachable, use --local", url)
		return check
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		check.Status, check.Details = statusWarn, fmt.Sprintf("%s returned %s", url, resp.Status)
		return check
	}
	check.Status, check.Details = statusPass, url
	return check
}
