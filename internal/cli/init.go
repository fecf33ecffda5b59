package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/marginalia/internal/workspace"
)

// errInitialized is returned by init when the replica already has text.
var errInitialized = errors.New("document already initialized (use --force to replace it)")

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init <text-file>",
		Short: "Create a replica database holding a document",
		Long: `Create (or open) the replica database and load the document text
from a file. Every replica that will sync threads should be initialized
from the same text.

With --force an existing document is replaced. Anchors in the replaced
text are lost and their threads become orphaned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				f := rootOpts.formatter(cmd)
				f.Error(ErrCodeNotFound, err.Error(), nil)
				return &ExitError{Code: ExitCommandError, Message: ErrCodeNotFound, Err: err, Reported: true}
			}

			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				if ws.Doc.Len() > 0 {
					if !force {
						return outcome{}, errInitialized
					}
					if err := ws.Doc.Delete(0, ws.Doc.Len()); err != nil {
						return outcome{}, err
					}
				}
				if err := ws.Doc.Insert(0, string(text)); err != nil {
					return outcome{}, err
				}
				return outcome{
					data: map[string]any{"replica": ws.Replica(), "length": ws.Doc.Len()},
					text: fmt.Sprintf("initialized replica %s with %d characters\n", ws.Replica(), ws.Doc.Len()),
				}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing document")
	return cmd
}
