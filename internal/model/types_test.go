package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRange_Valid(t *testing.T) {
	tests := []struct {
		name   string
		r      Range
		docLen int
		want   bool
	}{
		{"inside", Range{From: 2, To: 5}, 10, true},
		{"whole document", Range{From: 0, To: 10}, 10, true},
		{"cursor", Range{From: 4, To: 4}, 10, true},
		{"past end", Range{From: 8, To: 11}, 10, false},
		{"negative start", Range{From: -1, To: 3}, 10, false},
		{"inverted", Range{From: 6, To: 3}, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Valid(tt.docLen))
		})
	}
}

func TestRange_Intersects(t *testing.T) {
	a := Range{From: 0, To: 5}
	b := Range{From: 5, To: 10}
	c := Range{From: 4, To: 6}

	assert.False(t, a.Intersects(b), "adjacent half-open ranges do not overlap")
	assert.True(t, a.Intersects(c))
	assert.True(t, b.Intersects(c))
}

func TestThread_CloneDoesNotAlias(t *testing.T) {
	orig := Thread{
		ID:       "t1",
		Comments: []Comment{{ID: "c1", Text: "first"}},
	}
	clone := orig.Clone()
	clone.Comments[0].Text = "changed"
	clone.Comments = append(clone.Comments, Comment{ID: "c2"})

	assert.Equal(t, "first", orig.Comments[0].Text)
	assert.Len(t, orig.Comments, 1)
}

func TestThread_LastComment(t *testing.T) {
	_, ok := Thread{}.LastComment()
	assert.False(t, ok)

	th := Thread{Comments: []Comment{{ID: "a"}, {ID: "b"}}}
	last, ok := th.LastComment()
	assert.True(t, ok)
	assert.Equal(t, "b", last.ID)
}

func TestThreadMark(t *testing.T) {
	m := ThreadMark("thread-1")
	assert.Equal(t, ThreadMarkType, m.Type)
	assert.Equal(t, "thread-1", m.ThreadID)
	assert.Equal(t, m, ThreadMark("thread-1"), "marks are comparable values")
}
