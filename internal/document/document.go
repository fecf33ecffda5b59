package document

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/marginalia/internal/model"
)

// MarkSpec describes how a mark type behaves at edit boundaries.
type MarkSpec struct {
	// Inclusive marks extend over text typed at their end.
	Inclusive bool
}

type cell struct {
	ch    rune
	marks []model.Mark // sorted, no duplicates
}

// Document is a mutable text buffer with marks and a selection.
//
// Thread-safety: all methods are safe for concurrent use. Listeners run
// outside the lock, in registration order.
type Document struct {
	mu         sync.Mutex
	cells      []cell
	specs      map[string]MarkSpec
	selection  model.Range
	scrolledTo int

	nextListener int
	selListeners []listener[func(model.Range)]
	updListeners []listener[func()]
}

type listener[F any] struct {
	id int
	fn F
}

// New creates a document holding text with no marks. The selection is a
// cursor at offset 0.
func New(text string) *Document {
	d := &Document{specs: make(map[string]MarkSpec)}
	d.cells = toCells(text, nil)
	return d
}

func toCells(text string, marks []model.Mark) []cell {
	runes := []rune(text)
	cells := make([]cell, len(runes))
	for i, r := range runes {
		cells[i] = cell{ch: r, marks: slices.Clone(marks)}
	}
	return cells
}

// RegisterMarkType makes a mark type available for AddMark.
// Re-registering a name replaces its spec.
func (d *Document) RegisterMarkType(name string, spec MarkSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.specs[name] = spec
}

// Len returns the number of characters in the document.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cells)
}

// Text returns the document content without marks.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sliceLocked(0, len(d.cells))
}

// Slice returns the text of r.
func (d *Document) Slice(r model.Range) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !r.Valid(len(d.cells)) {
		return "", fmt.Errorf("%w: %s in document of length %d", ErrOutOfBounds, r, len(d.cells))
	}
	return d.sliceLocked(r.From, r.To), nil
}

func (d *Document) sliceLocked(from, to int) string {
	var b strings.Builder
	for _, c := range d.cells[from:to] {
		b.WriteRune(c.ch)
	}
	return b.String()
}

// Insert inserts text at pos.
func (d *Document) Insert(pos int, text string) error {
	d.mu.Lock()
	if pos < 0 || pos > len(d.cells) {
		n := len(d.cells)
		d.mu.Unlock()
		return fmt.Errorf("%w: insert at %d in document of length %d", ErrOutOfBounds, pos, n)
	}
	if text == "" {
		d.mu.Unlock()
		return nil
	}

	inserted := toCells(text, d.inheritedMarksLocked(pos))
	d.cells = slices.Insert(d.cells, pos, inserted...)

	n := len(inserted)
	sel := d.selection
	if sel.Empty() {
		if sel.From >= pos {
			sel = model.Range{From: sel.From + n, To: sel.To + n}
		}
	} else {
		if sel.From > pos {
			sel.From += n
		}
		if sel.To >= pos {
			sel.To += n
		}
	}
	d.commitLocked(sel)
	return nil
}

// inheritedMarksLocked returns the marks new text at pos picks up.
func (d *Document) inheritedMarksLocked(pos int) []model.Mark {
	if pos == 0 {
		return nil
	}
	before := d.cells[pos-1].marks
	var after []model.Mark
	if pos < len(d.cells) {
		after = d.cells[pos].marks
	}

	var out []model.Mark
	for _, m := range before {
		if d.specs[m.Type].Inclusive || slices.Contains(after, m) {
			out = append(out, m)
		}
	}
	return out
}

// Delete removes the characters in [from, to).
func (d *Document) Delete(from, to int) error {
	d.mu.Lock()
	r := model.Range{From: from, To: to}
	if !r.Valid(len(d.cells)) {
		n := len(d.cells)
		d.mu.Unlock()
		return fmt.Errorf("%w: delete %s in document of length %d", ErrOutOfBounds, r, n)
	}
	if r.Empty() {
		d.mu.Unlock()
		return nil
	}

	d.cells = slices.Delete(d.cells, from, to)
	sel := model.Range{From: mapDelete(d.selection.From, from, to), To: mapDelete(d.selection.To, from, to)}
	d.commitLocked(sel)
	return nil
}

func mapDelete(p, from, to int) int {
	switch {
	case p <= from:
		return p
	case p >= to:
		return p - (to - from)
	default:
		return from
	}
}

// Move cuts [from, to) and reinserts it at dest, where dest is an offset
// in the document before the move. Marks travel with the text. The
// selection collapses to the end of the moved text.
func (d *Document) Move(from, to, dest int) error {
	d.mu.Lock()
	r := model.Range{From: from, To: to}
	if !r.Valid(len(d.cells)) || dest < 0 || dest > len(d.cells) {
		n := len(d.cells)
		d.mu.Unlock()
		return fmt.Errorf("%w: move %s to %d in document of length %d", ErrOutOfBounds, r, dest, n)
	}
	if dest > from && dest < to {
		d.mu.Unlock()
		return fmt.Errorf("%w: move %s to %d", ErrInvalidMove, r, dest)
	}
	if r.Empty() || dest == from || dest == to {
		d.mu.Unlock()
		return nil
	}

	moved := slices.Clone(d.cells[from:to])
	d.cells = slices.Delete(d.cells, from, to)
	if dest > to {
		dest -= r.Len()
	}
	d.cells = slices.Insert(d.cells, dest, moved...)

	end := dest + len(moved)
	d.commitLocked(model.Range{From: end, To: end})
	return nil
}

// AddMark applies mark to every character in r.
func (d *Document) AddMark(r model.Range, mark model.Mark) error {
	d.mu.Lock()
	if err := d.checkMarkLocked(r, mark); err != nil {
		d.mu.Unlock()
		return err
	}
	for i := r.From; i < r.To; i++ {
		d.cells[i].marks = addSorted(d.cells[i].marks, mark)
	}
	d.commitLocked(d.selection)
	return nil
}

// RemoveMark strips mark from every character in r. It returns the
// number of characters that carried the mark.
func (d *Document) RemoveMark(r model.Range, mark model.Mark) (int, error) {
	d.mu.Lock()
	if err := d.checkMarkLocked(r, mark); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	removed := 0
	for i := r.From; i < r.To; i++ {
		if idx := slices.Index(d.cells[i].marks, mark); idx >= 0 {
			d.cells[i].marks = slices.Delete(slices.Clone(d.cells[i].marks), idx, idx+1)
			removed++
		}
	}
	if removed == 0 {
		d.mu.Unlock()
		return 0, nil
	}
	d.commitLocked(d.selection)
	return removed, nil
}

func (d *Document) checkMarkLocked(r model.Range, mark model.Mark) error {
	if _, ok := d.specs[mark.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMarkType, mark.Type)
	}
	if !r.Valid(len(d.cells)) {
		return fmt.Errorf("%w: mark %s in document of length %d", ErrOutOfBounds, r, len(d.cells))
	}
	return nil
}

func addSorted(marks []model.Mark, m model.Mark) []model.Mark {
	i, found := slices.BinarySearchFunc(marks, m, compareMarks)
	if found {
		return marks
	}
	return slices.Insert(slices.Clone(marks), i, m)
}

func compareMarks(a, b model.Mark) int {
	if c := strings.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	return strings.Compare(a.ThreadID, b.ThreadID)
}

// MarksBetween calls visit for every maximal run of characters sharing
// the same mark set that overlaps [from, to). The reported range covers
// the whole run, not just the overlap. Runs without marks are skipped.
// Iteration stops when visit returns false.
func (d *Document) MarksBetween(from, to int, visit func(run model.Range, marks []model.Mark) bool) error {
	d.mu.Lock()
	if !(model.Range{From: from, To: to}).Valid(len(d.cells)) {
		n := len(d.cells)
		d.mu.Unlock()
		return fmt.Errorf("%w: query [%d,%d) in document of length %d", ErrOutOfBounds, from, to, n)
	}

	type run struct {
		r     model.Range
		marks []model.Mark
	}
	var runs []run
	i := from
	for i < to {
		start := i
		for start > 0 && slices.Equal(d.cells[start-1].marks, d.cells[i].marks) {
			start--
		}
		end := i + 1
		for end < len(d.cells) && slices.Equal(d.cells[end].marks, d.cells[i].marks) {
			end++
		}
		if len(d.cells[i].marks) > 0 {
			runs = append(runs, run{r: model.Range{From: start, To: end}, marks: slices.Clone(d.cells[i].marks)})
		}
		i = end
	}
	d.mu.Unlock()

	for _, r := range runs {
		if !visit(r.r, r.marks) {
			break
		}
	}
	return nil
}

// MarksAt returns the marks on the character at pos.
func (d *Document) MarksAt(pos int) ([]model.Mark, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pos < 0 || pos >= len(d.cells) {
		return nil, fmt.Errorf("%w: %d in document of length %d", ErrOutOfBounds, pos, len(d.cells))
	}
	return slices.Clone(d.cells[pos].marks), nil
}

// SetSelection replaces the selection.
func (d *Document) SetSelection(r model.Range) error {
	d.mu.Lock()
	if !r.Valid(len(d.cells)) {
		n := len(d.cells)
		d.mu.Unlock()
		return fmt.Errorf("%w: selection %s in document of length %d", ErrOutOfBounds, r, n)
	}
	d.notifyLocked(r, false)
	return nil
}

// Selection returns the current selection.
func (d *Document) Selection() model.Range {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection
}

// ScrollIntoView records that the selection head should be visible.
func (d *Document) ScrollIntoView() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrolledTo = d.selection.From
}

// ScrolledTo returns the offset last scrolled into view.
func (d *Document) ScrolledTo() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolledTo
}

// OnSelectionChange registers fn to run whenever the selection changes,
// whether set directly or mapped through an edit. The returned function
// unregisters it.
func (d *Document) OnSelectionChange(fn func(model.Range)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextListener++
	id := d.nextListener
	d.selListeners = append(d.selListeners, listener[func(model.Range)]{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.selListeners = slices.DeleteFunc(slices.Clone(d.selListeners), func(l listener[func(model.Range)]) bool {
			return l.id == id
		})
	}
}

// OnUpdate registers fn to run after every edit to text or marks. The
// returned function unregisters it.
func (d *Document) OnUpdate(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextListener++
	id := d.nextListener
	d.updListeners = append(d.updListeners, listener[func()]{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.updListeners = slices.DeleteFunc(slices.Clone(d.updListeners), func(l listener[func()]) bool {
			return l.id == id
		})
	}
}

// commitLocked finishes an edit: stores the mapped selection, releases the
// lock and notifies listeners.
func (d *Document) commitLocked(sel model.Range) {
	d.notifyLocked(sel, true)
}

// notifyLocked stores sel, releases the lock, then runs listeners.
func (d *Document) notifyLocked(sel model.Range, edited bool) {
	changed := sel != d.selection
	d.selection = sel
	selFns := d.selListeners
	updFns := d.updListeners
	d.mu.Unlock()

	if edited {
		for _, l := range updFns {
			l.fn()
		}
	}
	if changed {
		for _, l := range selFns {
			l.fn(sel)
		}
	}
}
