package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/marginalia/internal/workspace"
)

// NewEditCommand creates the edit command group. Edits change the local
// document; anchors move with the text.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit the document text",
	}
	cmd.AddCommand(newEditInsertCommand(rootOpts))
	cmd.AddCommand(newEditDeleteCommand(rootOpts))
	cmd.AddCommand(newEditMoveCommand(rootOpts))
	return cmd
}

func editOutcome(ws *workspace.Workspace, what string) outcome {
	return outcome{
		data: map[string]any{"length": ws.Doc.Len(), "selection": ws.Doc.Selection()},
		text: fmt.Sprintf("%s; document is %d characters\n", what, ws.Doc.Len()),
	}
}

func newEditInsertCommand(rootOpts *RootOptions) *cobra.Command {
	var pos int
	var text string

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert text at a position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				if err := ws.Doc.Insert(pos, text); err != nil {
					return outcome{}, err
				}
				return editOutcome(ws, fmt.Sprintf("inserted %d characters at %d", len([]rune(text)), pos)), nil
			})
		},
	}
	cmd.Flags().IntVar(&pos, "pos", 0, "insert position")
	cmd.Flags().StringVar(&text, "text", "", "text to insert")
	cmd.MarkFlagRequired("text")
	return cmd
}

func newEditDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to int

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a range of text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				if err := ws.Doc.Delete(from, to); err != nil {
					return outcome{}, err
				}
				return editOutcome(ws, fmt.Sprintf("deleted [%d,%d)", from, to)), nil
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "range start")
	cmd.Flags().IntVar(&to, "to", 0, "range end")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newEditMoveCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to, dest int

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move a range of text to another position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				if err := ws.Doc.Move(from, to, dest); err != nil {
					return outcome{}, err
				}
				return editOutcome(ws, fmt.Sprintf("moved [%d,%d) to %d", from, to, dest)), nil
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "range start")
	cmd.Flags().IntVar(&to, "to", 0, "range end")
	cmd.Flags().IntVar(&dest, "dest", 0, "destination, as an offset before the move")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("dest")
	return cmd
}
