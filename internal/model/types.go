package model

import (
	"fmt"
	"time"
)

// Range is a half-open span [From, To) of document offsets.
type Range struct {
	From int `json:"from" cbor:"from"`
	To   int `json:"to" cbor:"to"`
}

// Empty reports whether the range covers no content (a cursor).
func (r Range) Empty() bool {
	return r.From == r.To
}

// Len returns the number of offsets covered by the range.
func (r Range) Len() int {
	return r.To - r.From
}

// Valid reports whether the range is well formed and lies inside a
// document of docLen offsets.
func (r Range) Valid(docLen int) bool {
	return r.From >= 0 && r.From <= r.To && r.To <= docLen
}

// Intersects reports whether two non-empty ranges share an offset.
func (r Range) Intersects(other Range) bool {
	return r.From < other.To && other.From < r.To
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.From, r.To)
}

// Author identifies who wrote a comment.
type Author struct {
	ID   string `json:"id" cbor:"id"`
	Name string `json:"name" cbor:"name"`
}

// Comment is one entry in a thread. Immutable once created.
type Comment struct {
	ID         string `json:"id" cbor:"id"`
	AuthorID   string `json:"author_id" cbor:"author_id"`
	AuthorName string `json:"author_name" cbor:"author_name"`
	CreatedAt  int64  `json:"created_at" cbor:"created_at"` // unix milliseconds
	Text       string `json:"text" cbor:"text"`
}

// Time returns CreatedAt as a time.Time in UTC.
func (c Comment) Time() time.Time {
	return time.UnixMilli(c.CreatedAt).UTC()
}

// Thread is a snapshot of one discussion thread.
//
// HintRange is the anchor position cached when the thread was created.
// It is advisory: the live position belongs to the document and must be
// looked up through the anchor layer at use time.
type Thread struct {
	ID        string    `json:"id" cbor:"id"`
	HintRange Range     `json:"hint_range" cbor:"hint_range"`
	Comments  []Comment `json:"comments" cbor:"comments"`
	Resolved  bool      `json:"resolved" cbor:"resolved"`
}

// Clone returns a deep copy of the thread.
func (t Thread) Clone() Thread {
	out := t
	out.Comments = make([]Comment, len(t.Comments))
	copy(out.Comments, t.Comments)
	return out
}

// LastComment returns the most recent comment, if any.
func (t Thread) LastComment() (Comment, bool) {
	if len(t.Comments) == 0 {
		return Comment{}, false
	}
	return t.Comments[len(t.Comments)-1], true
}

// Mark is the tag value attached to document content. It carries no
// payload beyond the thread id; thread content lives in the store.
type Mark struct {
	Type     string `json:"type" cbor:"type"`
	ThreadID string `json:"thread_id" cbor:"thread_id"`
}

// ThreadMarkType is the mark type name used for comment anchors.
const ThreadMarkType = "commentThread"

// ThreadMark returns the anchor mark for a thread id.
func ThreadMark(threadID string) Mark {
	return Mark{Type: ThreadMarkType, ThreadID: threadID}
}
