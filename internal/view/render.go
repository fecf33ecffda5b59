package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/marginalia/internal/model"
)

const (
	emptyNoThreads = "No active comment threads."
	emptyNoOthers  = "No other unresolved comments."
)

// Render writes the sidebar as plain text. Output depends only on the
// state, so it is safe to snapshot.
func Render(w io.Writer, s State) error {
	var b strings.Builder

	if len(s.Selected) > 0 {
		fmt.Fprintf(&b, "Comments on Selected Text (%d)\n", len(s.Selected))
		for _, tv := range s.Selected {
			renderThread(&b, tv, true)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "All Unresolved Threads (%d)\n", len(s.UnresolvedOthers))
	switch {
	case len(s.UnresolvedOthers) > 0:
		for _, tv := range s.UnresolvedOthers {
			renderThread(&b, tv, false)
		}
	case len(s.Selected) == 0:
		b.WriteString("  " + emptyNoThreads + "\n")
	default:
		b.WriteString("  " + emptyNoOthers + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderThread(b *strings.Builder, tv ThreadView, highlighted bool) {
	marker := "-"
	if highlighted {
		marker = "*"
	}
	t := tv.Thread

	fmt.Fprintf(b, "  %s %s (%s)", marker, t.ID, replies(len(t.Comments)))
	if t.Resolved {
		b.WriteString(" [RESOLVED]")
	}
	if tv.Orphaned {
		fmt.Fprintf(b, " orphaned, was %s", t.HintRange)
	} else {
		fmt.Fprintf(b, " at %s", tv.Live)
	}
	b.WriteString("\n")

	for _, c := range t.Comments {
		renderComment(b, c)
	}
}

func renderComment(b *strings.Builder, c model.Comment) {
	fmt.Fprintf(b, "      %s  %s\n", c.AuthorName, c.Time().Format("2006-01-02 15:04"))
	for _, line := range strings.Split(c.Text, "\n") {
		fmt.Fprintf(b, "        %s\n", line)
	}
}

func replies(n int) string {
	if n == 1 {
		return "1 reply"
	}
	return fmt.Sprintf("%d replies", n)
}
