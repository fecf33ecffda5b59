// Package anchor ties thread ids to live document spans and resolves a
// selection to the threads it touches.
//
// An anchor is a mark on document content whose only payload is the
// thread id. Its position is whatever the document says it is right now;
// nothing here caches offsets.
package anchor

import (
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/marginalia/internal/document"
	"github.com/roach88/marginalia/internal/model"
)

// Document is the part of the document engine anchoring needs.
type Document interface {
	Len() int
	RegisterMarkType(name string, spec document.MarkSpec)
	AddMark(r model.Range, mark model.Mark) error
	RemoveMark(r model.Range, mark model.Mark) (int, error)
	MarksBetween(from, to int, visit func(run model.Range, marks []model.Mark) bool) error
}

// Anchors places and finds thread anchors in one document.
type Anchors struct {
	doc Document
}

// New registers the thread mark type on doc and returns an Anchors bound
// to it. Thread marks are inclusive: typing at the end of an anchored
// span extends it.
func New(doc Document) *Anchors {
	doc.RegisterMarkType(model.ThreadMarkType, document.MarkSpec{Inclusive: true})
	return &Anchors{doc: doc}
}

// Place anchors threadID to r. The range must be non-empty and inside the
// document.
func (a *Anchors) Place(r model.Range, threadID string) error {
	if r.Empty() || !r.Valid(a.doc.Len()) {
		return fmt.Errorf("place anchor %s for %s: invalid range", r, threadID)
	}
	if err := a.doc.AddMark(r, model.ThreadMark(threadID)); err != nil {
		return fmt.Errorf("place anchor %s for %s: %w", r, threadID, err)
	}
	return nil
}

// Locate returns the live position of the first instance of threadID's
// anchor: the maximal contiguous run of content carrying its mark. It
// reports false when the thread has no anchor.
func (a *Anchors) Locate(threadID string) (model.Range, bool) {
	instances := a.Instances(threadID)
	if len(instances) == 0 {
		return model.Range{}, false
	}
	return instances[0], true
}

// Instances returns every contiguous span carrying threadID's anchor, in
// document order. Edits can split one anchor into several instances.
func (a *Anchors) Instances(threadID string) []model.Range {
	mark := model.ThreadMark(threadID)
	var out []model.Range
	a.scan(func(run model.Range, marks []model.Mark) {
		if !slices.Contains(marks, mark) {
			return
		}
		if n := len(out); n > 0 && out[n-1].To == run.From {
			out[n-1].To = run.To
			return
		}
		out = append(out, run)
	})
	return out
}

// RemoveAll detaches every instance of threadID's anchor and returns how
// many characters carried it.
func (a *Anchors) RemoveAll(threadID string) (int, error) {
	n, err := a.doc.RemoveMark(model.Range{From: 0, To: a.doc.Len()}, model.ThreadMark(threadID))
	if err != nil {
		return 0, fmt.Errorf("remove anchors for %s: %w", threadID, err)
	}
	return n, nil
}

// ThreadIDs returns the ids of every thread anchored in the document.
func (a *Anchors) ThreadIDs() mapset.Set[string] {
	ids := mapset.NewThreadUnsafeSet[string]()
	a.scan(func(_ model.Range, marks []model.Mark) {
		for _, m := range marks {
			if m.Type == model.ThreadMarkType {
				ids.Add(m.ThreadID)
			}
		}
	})
	return ids
}

// Resolve returns the ids of threads anchored in sel.
func (a *Anchors) Resolve(sel model.Range) mapset.Set[string] {
	return Resolve(a.doc, sel)
}

func (a *Anchors) scan(visit func(run model.Range, marks []model.Mark)) {
	// the full range is always in bounds
	_ = a.doc.MarksBetween(0, a.doc.Len(), func(run model.Range, marks []model.Mark) bool {
		visit(run, marks)
		return true
	})
}
