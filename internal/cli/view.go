package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marginalia/internal/model"
	"github.com/roach88/marginalia/internal/view"
	"github.com/roach88/marginalia/internal/workspace"
)

// ViewResult is the JSON form of the sidebar.
type ViewResult struct {
	Selection  model.Range `json:"selection"`
	Selected   []string    `json:"selected"`
	Unresolved []string    `json:"unresolved"`
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to int

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Render the comment sidebar for the current selection",
		Long: `Render the comment sidebar: threads under the selection first, then
every other unresolved thread.

With --from (and optionally --to) the selection is moved first and saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			move := cmd.Flags().Changed("from")
			return rootOpts.run(cmd, move, func(ws *workspace.Workspace) (outcome, error) {
				if err := ws.View.Activate(); err != nil {
					return outcome{}, err
				}
				if move {
					end := from
					if cmd.Flags().Changed("to") {
						end = to
					}
					if err := ws.Doc.SetSelection(model.Range{From: from, To: end}); err != nil {
						return outcome{}, err
					}
				}

				st := ws.View.State()
				var b strings.Builder
				if err := view.Render(&b, st); err != nil {
					return outcome{}, err
				}
				return outcome{
					data: ViewResult{
						Selection:  st.Selection,
						Selected:   view.IDs(st.Selected),
						Unresolved: view.IDs(st.UnresolvedOthers),
					},
					text: b.String(),
				}, nil
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "selection start")
	cmd.Flags().IntVar(&to, "to", 0, "selection end (default: cursor at --from)")
	return cmd
}
