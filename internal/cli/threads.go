package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/marginalia/internal/model"
	"github.com/roach88/marginalia/internal/workspace"
)

// ThreadInfo is the listing form of a thread.
type ThreadInfo struct {
	ID       string       `json:"id"`
	Hint     model.Range  `json:"hint_range"`
	Anchor   *model.Range `json:"anchor,omitempty"`
	Replies  int          `json:"replies"`
	Resolved bool         `json:"resolved"`
}

func threadInfo(ws *workspace.Workspace, t model.Thread) ThreadInfo {
	info := ThreadInfo{ID: t.ID, Hint: t.HintRange, Replies: len(t.Comments), Resolved: t.Resolved}
	if r, ok := ws.Anchors.Locate(t.ID); ok {
		info.Anchor = &r
	}
	return info
}

func (i ThreadInfo) String() string {
	status := "open"
	if i.Resolved {
		status = "resolved"
	}
	where := "orphaned, was " + i.Hint.String()
	if i.Anchor != nil {
		where = "at " + i.Anchor.String()
	}
	return fmt.Sprintf("%s\t%s\t%d\t%s", i.ID, status, i.Replies, where)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to int
	var text string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a thread on a range of the document",
		Example: `  marginalia create --from 4 --to 9 --text "Is this the right word?"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				id, err := ws.Controller.CreateThread(model.Range{From: from, To: to}, text)
				if err != nil {
					return outcome{}, err
				}
				return outcome{
					data: map[string]any{"thread": id},
					text: fmt.Sprintf("created %s\n", id),
				}, nil
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "range start (inclusive)")
	cmd.Flags().IntVar(&to, "to", 0, "range end (exclusive)")
	cmd.Flags().StringVar(&text, "text", "", "first comment")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("text")
	return cmd
}

// NewReplyCommand creates the reply command.
func NewReplyCommand(rootOpts *RootOptions) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "reply <thread-id>",
		Short: "Add a comment to a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, false, func(ws *workspace.Workspace) (outcome, error) {
				c, err := ws.Controller.AddReply(args[0], text)
				if err != nil {
					return outcome{}, err
				}
				return outcome{
					data: map[string]any{"thread": args[0], "comment": c.ID},
					text: fmt.Sprintf("replied %s on %s\n", c.ID, args[0]),
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text")
	cmd.MarkFlagRequired("text")
	return cmd
}

// NewResolveCommand creates the resolve command, or reopen when resolved
// is false.
func NewResolveCommand(rootOpts *RootOptions, resolved bool) *cobra.Command {
	use, short, verb := "resolve", "Mark a thread resolved", "resolved"
	if !resolved {
		use, short, verb = "reopen", "Mark a resolved thread unresolved again", "reopened"
	}

	return &cobra.Command{
		Use:   use + " <thread-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, false, func(ws *workspace.Workspace) (outcome, error) {
				if err := ws.Controller.ToggleResolve(args[0], resolved); err != nil {
					return outcome{}, err
				}
				return outcome{
					data: map[string]any{"thread": args[0], "resolved": resolved},
					text: fmt.Sprintf("%s %s\n", verb, args[0]),
				}, nil
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thread-id>",
		Short: "Delete a thread and its anchors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				if err := ws.Controller.DeleteThread(args[0]); err != nil {
					return outcome{}, err
				}
				return outcome{
					data: map[string]any{"thread": args[0]},
					text: fmt.Sprintf("deleted %s\n", args[0]),
				}, nil
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var unresolved bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List threads in document order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, false, func(ws *workspace.Workspace) (outcome, error) {
				threads, err := ws.Controller.ListThreads()
				if err != nil {
					return outcome{}, err
				}
				if unresolved {
					threads = lo.Filter(threads, func(t model.Thread, _ int) bool { return !t.Resolved })
				}
				slices.SortFunc(threads, func(a, b model.Thread) int {
					if a.HintRange.From != b.HintRange.From {
						return a.HintRange.From - b.HintRange.From
					}
					return strings.Compare(a.ID, b.ID)
				})
				infos := lo.Map(threads, func(t model.Thread, _ int) ThreadInfo { return threadInfo(ws, t) })

				var b strings.Builder
				if len(infos) == 0 {
					b.WriteString("No threads.\n")
				}
				for _, info := range infos {
					b.WriteString(info.String() + "\n")
				}
				return outcome{data: infos, text: b.String()}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only unresolved threads")
	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print a thread with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, false, func(ws *workspace.Workspace) (outcome, error) {
				t, err := ws.Controller.GetThread(args[0])
				if err != nil {
					return outcome{}, err
				}
				info := threadInfo(ws, t)

				var b strings.Builder
				b.WriteString(info.String() + "\n")
				if info.Anchor != nil {
					if quoted, err := ws.Doc.Slice(*info.Anchor); err == nil {
						fmt.Fprintf(&b, "  > %s\n", quoted)
					}
				}
				for _, c := range t.Comments {
					fmt.Fprintf(&b, "  %s  %s  (%s)\n", c.AuthorName, c.Time().Format("2006-01-02 15:04"), c.ID)
					for _, line := range strings.Split(c.Text, "\n") {
						fmt.Fprintf(&b, "    %s\n", line)
					}
				}
				return outcome{data: t, text: b.String()}, nil
			})
		},
	}
}

// NewNavigateCommand creates the navigate command.
func NewNavigateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <thread-id>",
		Short: "Move the cursor to a thread's anchor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				r, err := ws.Controller.NavigateToThread(args[0])
				if err != nil {
					return outcome{}, err
				}
				return outcome{
					data: map[string]any{"thread": args[0], "anchor": r, "cursor": ws.Doc.Selection()},
					text: fmt.Sprintf("%s at %s, cursor at %d\n", args[0], r, r.From),
				}, nil
			})
		},
	}
}

// NewGCCommand creates the gc command.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove anchors left behind by deleted threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, true, func(ws *workspace.Workspace) (outcome, error) {
				removed, err := ws.Controller.CollectOrphans()
				if err != nil {
					return outcome{}, err
				}
				if removed == nil {
					removed = []string{}
				}
				text := "nothing to collect\n"
				if len(removed) > 0 {
					text = "collected " + strings.Join(removed, ", ") + "\n"
				}
				return outcome{data: map[string]any{"removed": removed}, text: text}, nil
			})
		},
	}
}
