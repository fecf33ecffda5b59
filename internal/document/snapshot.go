package document

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/marginalia/internal/model"
)

// snapshot is the persisted form: text plus one span per maximal marked
// run and mark.
type snapshot struct {
	Text      string      `cbor:"text"`
	Spans     []markSpan  `cbor:"spans"`
	Selection model.Range `cbor:"selection"`
}

type markSpan struct {
	Range model.Range `cbor:"range"`
	Mark  model.Mark  `cbor:"mark"`
}

var snapshotEnc cbor.EncMode

func init() {
	var err error
	snapshotEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("document: CBOR encoder initialization failed: " + err.Error())
	}
}

// MarshalBinary encodes text, marks and selection. Equal documents encode
// to equal bytes.
func (d *Document) MarshalBinary() ([]byte, error) {
	d.mu.Lock()
	snap := snapshot{
		Text:      d.sliceLocked(0, len(d.cells)),
		Spans:     d.spansLocked(),
		Selection: d.selection,
	}
	d.mu.Unlock()

	data, err := snapshotEnc.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// spansLocked collapses per-character marks into contiguous spans, ordered
// by start offset then mark.
func (d *Document) spansLocked() []markSpan {
	var spans []markSpan
	open := make(map[model.Mark]int)
	for i := 0; i <= len(d.cells); i++ {
		var here []model.Mark
		if i < len(d.cells) {
			here = d.cells[i].marks
		}
		for m, start := range open {
			if !slices.Contains(here, m) {
				spans = append(spans, markSpan{Range: model.Range{From: start, To: i}, Mark: m})
				delete(open, m)
			}
		}
		for _, m := range here {
			if _, ok := open[m]; !ok {
				open[m] = i
			}
		}
	}
	slices.SortFunc(spans, func(a, b markSpan) int {
		if a.Range.From != b.Range.From {
			return a.Range.From - b.Range.From
		}
		return compareMarks(a.Mark, b.Mark)
	})
	return spans
}

// UnmarshalBinary replaces the document content with a snapshot. Every
// mark type in the snapshot must already be registered. Listeners are
// not notified.
func (d *Document) UnmarshalBinary(data []byte) error {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cells := toCells(snap.Text, nil)
	for _, sp := range snap.Spans {
		if _, ok := d.specs[sp.Mark.Type]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownMarkType, sp.Mark.Type)
		}
		if !sp.Range.Valid(len(cells)) {
			return fmt.Errorf("%w: span %s in snapshot of length %d", ErrOutOfBounds, sp.Range, len(cells))
		}
		for i := sp.Range.From; i < sp.Range.To; i++ {
			cells[i].marks = addSorted(cells[i].marks, sp.Mark)
		}
	}
	if !snap.Selection.Valid(len(cells)) {
		snap.Selection = model.Range{}
	}

	d.cells = cells
	d.selection = snap.Selection
	return nil
}
