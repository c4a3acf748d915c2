package commands

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/leapstack-labs/answerdesk/internal/dispatch"
	"github.com/leapstack-labs/answerdesk/internal/qa"
)

// NewAnswerCommand creates the answer command group.
func NewAnswerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Set or delete the answer of a question",
		Long: `Change the answer of a question and show the resulting answer panel.

By default the change goes through the running server (client.server_url),
so open question pages update live. With --local the database is changed
directly.`,
	}
	cmd.AddCommand(newAnswerSetCommand())
	cmd.AddCommand(newAnswerDeleteCommand())
	return cmd
}

// AnswerSetOptions holds options for the answer set command.
type AnswerSetOptions struct {
	ClientOptions
	File     string
	Markdown bool
	Attach   []string
}

func newAnswerSetCommand() *cobra.Command {
	opts := &AnswerSetOptions{}
	cmd := &cobra.Command{
		Use:   "set <question-id> [answer]",
		Short: "Create or replace an answer",
		Example: `  # Answer inline
  answerdesk answer set 7 "<p>Форма на странице заявок.</p>"

  # Answer from a Markdown file with an attachment
  answerdesk answer set 7 --file answer.md --markdown --attach guide.pdf`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnswerSet(cmd, opts, args)
		},
	}
	addClientFlags(cmd, &opts.ClientOptions)
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Read the answer from a file (- for stdin)")
	cmd.Flags().BoolVar(&opts.Markdown, "markdown", false, "Treat the answer as Markdown")
	cmd.Flags().StringSliceVarP(&opts.Attach, "attach", "a", nil, "Attach files")
	return cmd
}

func runAnswerSet(cmd *cobra.Command, opts *AnswerSetOptions, args []string) error {
	id, err := parseID("question", args[0])
	if err != nil {
		return err
	}

	body, err := readAnswerBody(cmd, opts, args[1:])
	if err != nil {
		return err
	}
	if opts.Markdown {
		if body, err = markdownToHTML(body); err != nil {
			return err
		}
	}

	uploads, closeUploads, err := openUploads(opts.Attach)
	if err != nil {
		return err
	}
	defer closeUploads()

	s, cleanup, err := openPanelSession(cmd, &opts.ClientOptions, id)
	if err != nil {
		return err
	}
	defer cleanup()

	return s.finish(s.dispatcher.SubmitAnswer(cmd.Context(), id, body, uploads))
}

func newAnswerDeleteCommand() *cobra.Command {
	opts := &ClientOptions{}
	cmd := &cobra.Command{
		Use:   "delete <question-id>",
		Short: "Delete an answer and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("question", args[0])
			if err != nil {
				return err
			}

			s, cleanup, err := openPanelSession(cmd, opts, id)
			if err != nil {
				return err
			}
			defer cleanup()

			ok, err := s.confirm.Confirm(cmd.Context(), dispatch.PromptDeleteAnswer)
			if err != nil || !ok {
				return err
			}
			return s.finish(s.dispatcher.DeleteAnswer(cmd.Context(), id))
		},
	}
	addClientFlags(cmd, opts)
	return cmd
}

// readAnswerBody takes the answer from the argument, --file or stdin.
func readAnswerBody(cmd *cobra.Command, opts *AnswerSetOptions, args []string) (string, error) {
	switch {
	case len(args) > 0 && opts.File != "":
		return "", fmt.Errorf("give the answer as an argument or with --file, not both")
	case len(args) > 0:
		return args[0], nil
	case opts.File == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return "", fmt.Errorf("failed to read answer: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("no answer given")
	}
}

func markdownToHTML(src string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// openUploads opens the files to attach. The returned func closes them.
func openUploads(paths []string) ([]qa.Upload, func(), error) {
	var (
		uploads []qa.Upload
		files   []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, p := range paths {
		f, err := os.Open(p) //nolint:gosec
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
		}
		files = append(files, f)

		info, err := f.Stat()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		uploads = append(uploads, qa.Upload{
			Name:        filepath.Base(p),
			ContentType: contentType,
			Size:        info.Size(),
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}
