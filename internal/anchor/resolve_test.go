package anchor

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marginalia/internal/model"
)

func setOf(ids ...string) mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(ids...)
}

func TestResolve(t *testing.T) {
	_, a := setupAnchors(t, "0123456789abcdef")
	require.NoError(t, a.Place(model.Range{From: 0, To: 5}, "T1"))
	require.NoError(t, a.Place(model.Range{From: 5, To: 10}, "T2"))

	tests := []struct {
		name string
		sel  model.Range
		want mapset.Set[string]
	}{
		{"spanning both", model.Range{From: 4, To: 6}, setOf("T1", "T2")},
		{"cursor inside T2", model.Range{From: 6, To: 6}, setOf("T2")},
		{"cursor at boundary picks following char", model.Range{From: 5, To: 5}, setOf("T2")},
		{"selection ending at boundary", model.Range{From: 2, To: 5}, setOf("T1")},
		{"outside anchors", model.Range{From: 11, To: 14}, setOf()},
		{"cursor at document end", model.Range{From: 16, To: 16}, setOf()},
		{"whole document", model.Range{From: 0, To: 16}, setOf("T1", "T2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Resolve(tt.sel)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}
}

func TestResolve_CursorAtEndSeesLastChar(t *testing.T) {
	_, a := setupAnchors(t, "abcdef")
	require.NoError(t, a.Place(model.Range{From: 3, To: 6}, "T1"))

	assert.True(t, setOf("T1").Equal(a.Resolve(model.Range{From: 6, To: 6})))
}

func TestResolve_SplitAnchorDeduplicates(t *testing.T) {
	doc, a := setupAnchors(t, "0123456789")
	require.NoError(t, a.Place(model.Range{From: 2, To: 8}, "T1"))
	require.NoError(t, doc.Move(4, 6, 10))
	require.Len(t, a.Instances("T1"), 2)

	got := Resolve(doc, model.Range{From: 0, To: 10})
	assert.Equal(t, 1, got.Cardinality())
	assert.True(t, got.Contains("T1"))
}

func TestResolve_EmptyDocument(t *testing.T) {
	doc, _ := setupAnchors(t, "")
	assert.Equal(t, 0, Resolve(doc, model.Range{}).Cardinality())
}
