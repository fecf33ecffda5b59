package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/marginalia/internal/workspace"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var document bool

	cmd := &cobra.Command{
		Use:   "sync <other-db>",
		Short: "Exchange thread updates with another replica database",
		Long: `Exchange thread updates with another replica database in both
directions. Afterwards both replicas hold the same threads.

Document text is not replicated by sync. With --document this replica's
document (text and anchors) is replaced by a copy of the other one's.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				rootOpts.formatter(cmd).Error(ErrCodeNotFound, err.Error(), nil)
				return &ExitError{Code: ExitCommandError, Message: ErrCodeNotFound, Err: err, Reported: true}
			}
			peerCfg := rootOpts.Config()
			peerCfg.DB = args[0]
			peerCfg.Replica = ""

			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				peer, err := rootOpts.open(cmd, peerCfg)
				if err != nil {
					return outcome{}, err
				}
				defer peer.Close()

				stats, err := ws.Merge(peer)
				if err != nil {
					return outcome{}, err
				}
				if err := peer.Err(); err != nil {
					return outcome{}, err
				}
				if document {
					if err := ws.AdoptDocument(peer); err != nil {
						return outcome{}, err
					}
				}
				return outcome{
					data: map[string]any{
						"replica":  ws.Replica(),
						"peer":     peer.Replica(),
						"received": stats.BToA,
						"sent":     stats.AToB,
						"document": document,
					},
					text: fmt.Sprintf("synced with %s: received %d, sent %d\n", peer.Replica(), stats.BToA, stats.AToB),
				}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&document, "document", false, "also copy the other replica's document")
	return cmd
}
