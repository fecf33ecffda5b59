package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marginalia/internal/document"
	"github.com/roach88/marginalia/internal/model"
)

func setupAnchors(t *testing.T, text string) (*document.Document, *Anchors) {
	t.Helper()
	doc := document.New(text)
	return doc, New(doc)
}

func TestPlace_AndLocate(t *testing.T) {
	_, a := setupAnchors(t, "0123456789abcdefghij")
	require.NoError(t, a.Place(model.Range{From: 10, To: 20}, "T1"))

	r, ok := a.Locate("T1")
	require.True(t, ok)
	assert.Equal(t, model.Range{From: 10, To: 20}, r)

	_, ok = a.Locate("T2")
	assert.False(t, ok)
}

func TestPlace_InvalidRange(t *testing.T) {
	_, a := setupAnchors(t, "short")
	tests := []model.Range{
		{From: 3, To: 3},
		{From: 4, To: 9},
		{From: -1, To: 2},
		{From: 4, To: 2},
	}
	for _, r := range tests {
		t.Run(r.String(), func(t *testing.T) {
			assert.Error(t, a.Place(r, "T1"))
		})
	}
	assert.Empty(t, a.ThreadIDs().ToSlice())
}

func TestLocate_FollowsEdits(t *testing.T) {
	doc, a := setupAnchors(t, "hello brave new world")
	require.NoError(t, a.Place(model.Range{From: 6, To: 11}, "T1"))

	require.NoError(t, doc.Insert(0, "oh "))
	r, _ := a.Locate("T1")
	assert.Equal(t, model.Range{From: 9, To: 14}, r)

	require.NoError(t, doc.Insert(14, "st"))
	r, _ = a.Locate("T1")
	assert.Equal(t, model.Range{From: 9, To: 16}, r)

	require.NoError(t, doc.Delete(9, 16))
	_, ok := a.Locate("T1")
	assert.False(t, ok)
}

func TestInstances_SplitAnchor(t *testing.T) {
	doc, a := setupAnchors(t, "0123456789")
	require.NoError(t, a.Place(model.Range{From: 2, To: 8}, "T1"))
	require.NoError(t, a.Place(model.Range{From: 4, To: 6}, "T2"))

	// moving the middle out splits T1 in two
	require.NoError(t, doc.Move(4, 6, 10))

	assert.Equal(t, []model.Range{{From: 2, To: 6}, {From: 8, To: 10}}, a.Instances("T1"))
	r, ok := a.Locate("T1")
	require.True(t, ok)
	assert.Equal(t, model.Range{From: 2, To: 6}, r)

	assert.Equal(t, []model.Range{{From: 8, To: 10}}, a.Instances("T2"))
}

func TestRemoveAll(t *testing.T) {
	doc, a := setupAnchors(t, "0123456789")
	require.NoError(t, a.Place(model.Range{From: 2, To: 8}, "T1"))
	require.NoError(t, doc.Move(4, 6, 10))

	n, err := a.RemoveAll("T1")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Empty(t, a.Instances("T1"))

	n, err = a.RemoveAll("T1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestThreadIDs(t *testing.T) {
	_, a := setupAnchors(t, "0123456789")
	require.NoError(t, a.Place(model.Range{From: 0, To: 3}, "T1"))
	require.NoError(t, a.Place(model.Range{From: 2, To: 5}, "T2"))

	ids := a.ThreadIDs()
	assert.True(t, ids.Equal(setOf("T1", "T2")))
}
