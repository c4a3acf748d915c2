package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/answerdesk/internal/blob"
	"github.com/leapstack-labs/answerdesk/internal/cli/config"
	"github.com/leapstack-labs/answerdesk/internal/qa"
)

// exampleQuestions seed the database created by init --example.
var exampleQuestions = []struct {
	title, content, answer string
}{
	{
		title:   "Как подать заявку на пропуск?",
		content: "<p>Где найти форму заявки и сколько её рассматривают?</p>",
		answer:  "<p>Форма находится в разделе «Заявки». Рассмотрение занимает до трёх рабочих дней.</p>",
	},
	{
		title:   "Можно ли приложить документы после отправки?",
		content: "<p>Забыл приложить скан паспорта.</p>",
	},
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an answerdesk configuration",
		Long: `Create answerdesk.yaml with the default settings and a .gitignore for
the database and uploads.

Use --example to also create a database with sample questions.`,
		Example: `  # Initialize in current directory
  answerdesk init

  # Initialize a demo in a new directory
  answerdesk init demo --example

  # Force overwrite existing config
  answerdesk init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			if err := runInit(cmd.OutOrStdout(), dir, force); err != nil {
				return err
			}
			if example {
				return seedExample(cmd, dir)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create a database with sample questions")

	return cmd
}

func runInit(w io.Writer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	files, _ := listTemplateFiles("minimal")
	for _, f := range files {
		_, _ = fmt.Fprintf(w, "  created %s\n", f)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Next steps:")
	_, _ = fmt.Fprintln(w, "  1. Set ANSWERDESK_SESSION_SECRET")
	_, _ = fmt.Fprintln(w, "  2. Run 'answerdesk question create --title ...'")
	_, _ = fmt.Fprintln(w, "  3. Run 'answerdesk serve' and open a question page")
	return nil
}

// seedExample creates the database next to the new config and fills it with
// sample questions.
func seedExample(cmd *cobra.Command, dir string) error {
	cfg := &config.Config{
		Database: filepath.Join(dir, config.DefaultDatabase),
		Storage:  &config.StorageConfig{LocalDir: filepath.Join(dir, config.DefaultStorageDir)},
	}
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	blobs, err := blob.NewLocalStore(cfg.GetStorageConfig().LocalDir)
	if err != nil {
		return err
	}
	svc := qa.NewService(store, blobs, logger, qa.Options{})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for _, ex := range exampleQuestions {
		q, err := svc.CreateQuestion(ctx, ex.title, ex.content)
		if err != nil {
			return err
		}
		if ex.answer != "" {
			upload := qa.Upload{
				Name:        "инструкция.txt",
				ContentType: "text/plain",
				Size:        int64(len(ex.answer)),
				Body:        strings.NewReader(ex.answer),
			}
			if _, err := svc.SaveAnswer(ctx, q.ID, ex.answer, config.DefaultAuthor, []qa.Upload{upload}); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  question #%d %s\n", q.ID, q.Title)
	}
	return nil
}
