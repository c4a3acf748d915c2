package commands

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/internal/term"
)

// NewQuestionCommand creates the question command group.
func NewQuestionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Create and inspect questions",
	}
	cmd.AddCommand(newQuestionCreateCommand())
	cmd.AddCommand(newQuestionListCommand())
	cmd.AddCommand(newQuestionShowCommand())
	return cmd
}

// QuestionCreateOptions holds options for the question create command.
type QuestionCreateOptions struct {
	Title   string
	Content string
}

func newQuestionCreateCommand() *cobra.Command {
	opts := &QuestionCreateOptions{}
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Publish a new question",
		Example: `  answerdesk question create --title "Как подать заявку?" --content "<p>Где найти форму?</p>"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			q, err := cmdCtx.Service.CreateQuestion(cmd.Context(), opts.Title, opts.Content)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created question #%d\n", q.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "Question title")
	cmd.Flags().StringVar(&opts.Content, "content", "", "Question text (HTML)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newQuestionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List questions and their answer state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			questions, err := cmdCtx.Service.Questions(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(questions) == 0 {
				_, _ = fmt.Fprintln(w, "(0 questions)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Title", "Answer", "Files", "Views"})
			for _, q := range questions {
				snap, err := cmdCtx.Service.Snapshot(cmd.Context(), q.ID)
				if err != nil {
					return err
				}
				answer := "-"
				if snap.HasAnswer {
					answer = snap.AuthorName + ", " + snap.UpdatedAt
				}
				t.AppendRow(table.Row{q.ID, q.Title, answer, snap.TotalFiles, q.Views})
			}
			t.Render()
			_, _ = fmt.Fprintf(w, "(%d questions)\n", len(questions))
			return nil
		},
	}
}

func newQuestionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <question-id>",
		Short: "Show a question with its answer panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("question", args[0])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			q, err := cmdCtx.Service.Question(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("%s: %w", qa.UserMessage(err), err)
			}
			snap, err := cmdCtx.Service.Snapshot(cmd.Context(), id)
			if err != nil {
				return err
			}
			surface, err := term.NewSurface(id, snap)
			if err != nil {
				return err
			}

			content, err := htmltomarkdown.ConvertString(q.Content)
			if err != nil {
				return fmt.Errorf("convert question: %w", err)
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "# %s\n\n", q.Title)
			if body := strings.TrimSpace(content); body != "" {
				_, _ = fmt.Fprintf(w, "%s\n\n", body)
			}
			_, _ = fmt.Fprintf(w, "Просмотров: %d\n\n", q.Views)
			return surface.Print(w)
		},
	}
}
