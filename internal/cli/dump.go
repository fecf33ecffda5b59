package cli

import (
	"slices"
	"strings"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/roach88/marginalia/internal/crdt"
	"github.com/roach88/marginalia/internal/model"
	"github.com/roach88/marginalia/internal/workspace"
)

// Dump is the debugging view of a replica.
type Dump struct {
	Replica   string
	Lamport   uint64
	Version   map[string]uint64
	Pending   int
	Text      string
	Selection model.Range
	Threads   []model.Thread
	Updates   []string `json:",omitempty"` // CBOR diagnostic notation
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	var updates bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the replica's internal state for debugging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, false, func(ws *workspace.Workspace) (outcome, error) {
				d, err := dump(ws, updates)
				if err != nil {
					return outcome{}, err
				}
				text := litter.Options{StripPackageNames: true, HidePrivateFields: true}.Sdump(d)
				return outcome{data: d, text: text + "\n"}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&updates, "updates", false, "include every applied update in CBOR diagnostic notation")
	return cmd
}

func dump(ws *workspace.Workspace, withUpdates bool) (Dump, error) {
	threads := ws.Threads.All()
	slices.SortFunc(threads, func(a, b model.Thread) int { return strings.Compare(a.ID, b.ID) })

	d := Dump{
		Replica:   ws.Replica(),
		Lamport:   ws.Threads.Clock().Current(),
		Version:   ws.Threads.Version(),
		Pending:   ws.Threads.Pending(),
		Text:      ws.Doc.Text(),
		Selection: ws.Doc.Selection(),
		Threads:   threads,
	}
	if !withUpdates {
		return d, nil
	}
	for _, u := range ws.Threads.UpdatesSince(nil) {
		data, err := crdt.EncodeUpdate(u)
		if err != nil {
			return d, err
		}
		diag, err := crdt.Diagnose(data)
		if err != nil {
			return d, err
		}
		d.Updates = append(d.Updates, u.ID.String()+" "+diag)
	}
	return d, nil
}
