package commands

import (
	"github.com/spf13/cobra"
)

// NewFileCommand creates the file command group.
func NewFileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Manage files attached to answers",
	}
	cmd.AddCommand(newFileDeleteCommand())
	return cmd
}

func newFileDeleteCommand() *cobra.Command {
	opts := &ClientOptions{}
	cmd := &cobra.Command{
		Use:   "delete <question-id> <file-id>",
		Short: "Delete an attached file",
		Long: `Delete a file attached to the answer of a question, then show the
refreshed answer panel.`,
		Example: `  answerdesk file delete 7 12 --yes`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			questionID, err := parseID("question", args[0])
			if err != nil {
				return err
			}
			fileID, err := parseID("file", args[1])
			if err != nil {
				return err
			}

			s, cleanup, err := openPanelSession(cmd, opts, questionID)
			if err != nil {
				return err
			}
			defer cleanup()

			return s.finish(s.dispatcher.DeleteFile(cmd.Context(), questionID, fileID))
		},
	}
	addClientFlags(cmd, opts)
	return cmd
}
