package crdt

import (
	"sort"

	"github.com/roach88/marginalia/internal/model"
)

// lwwRange is a last-writer-wins register holding a range.
type lwwRange struct {
	value model.Range
	stamp Stamp
	set   bool
}

func (r *lwwRange) write(v model.Range, s Stamp) {
	if !r.set || r.stamp.Less(s) {
		r.value, r.stamp, r.set = v, s, true
	}
}

// lwwBool is a last-writer-wins register holding a flag.
type lwwBool struct {
	value bool
	stamp Stamp
	set   bool
}

func (r *lwwBool) write(v bool, s Stamp) {
	if !r.set || r.stamp.Less(s) {
		r.value, r.stamp, r.set = v, s, true
	}
}

type stampedComment struct {
	stamp   Stamp
	comment model.Comment
}

// record is the merge state of one thread on one replica.
//
// A record may exist before its creating operation has arrived (a reply
// from a third replica can overtake the create). It only becomes visible
// once created is set.
type record struct {
	created  bool
	hint     lwwRange
	resolved lwwBool
	comments []stampedComment // sorted by stamp
}

// addComment inserts c at its stamp position. Re-delivery of the same
// stamp is a no-op, so merges never duplicate a comment.
func (r *record) addComment(c model.Comment, s Stamp) {
	i := sort.Search(len(r.comments), func(i int) bool {
		return !r.comments[i].stamp.Less(s)
	})
	if i < len(r.comments) && r.comments[i].stamp == s {
		return
	}
	r.comments = append(r.comments, stampedComment{})
	copy(r.comments[i+1:], r.comments[i:])
	r.comments[i] = stampedComment{stamp: s, comment: c}
}

func (r *record) snapshot(id string) model.Thread {
	comments := make([]model.Comment, len(r.comments))
	for i, sc := range r.comments {
		comments[i] = sc.comment
	}
	return model.Thread{
		ID:        id,
		HintRange: r.hint.value,
		Comments:  comments,
		Resolved:  r.resolved.value,
	}
}
