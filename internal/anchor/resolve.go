package anchor

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/marginalia/internal/model"
)

// Resolve returns the set of thread ids whose anchor overlaps sel.
//
// A non-empty selection covers the characters From through To-1. A
// cursor covers the single character at From, or the last character when
// the cursor sits at the end of the document. Split anchors collapse to
// one id. The result has no order.
func Resolve(doc Document, sel model.Range) mapset.Set[string] {
	ids := mapset.NewThreadUnsafeSet[string]()

	n := doc.Len()
	from, to := sel.From, sel.To
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if sel.Empty() {
		if from >= n {
			from = n - 1
		}
		to = from + 1
	}
	if n == 0 || from >= to {
		return ids
	}

	_ = doc.MarksBetween(from, to, func(_ model.Range, marks []model.Mark) bool {
		for _, m := range marks {
			if m.Type == model.ThreadMarkType {
				ids.Add(m.ThreadID)
			}
		}
		return true
	})
	return ids
}
