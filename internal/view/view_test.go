package view

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marginalia/internal/anchor"
	"github.com/roach88/marginalia/internal/bus"
	"github.com/roach88/marginalia/internal/crdt"
	"github.com/roach88/marginalia/internal/document"
	"github.com/roach88/marginalia/internal/model"
	"github.com/roach88/marginalia/internal/testutil"
	"github.com/roach88/marginalia/internal/thread"
)

type fixture struct {
	doc      *document.Document
	store    *crdt.Doc
	anchors  *anchor.Anchors
	bus      *bus.Bus
	identity *testutil.FixedIdentity
	ctl      *thread.Controller
}

func setupView(t *testing.T, text string) *fixture {
	t.Helper()
	f := &fixture{
		doc:      document.New(text),
		store:    crdt.New("a"),
		bus:      bus.New(nil),
		identity: testutil.NewFixedIdentity("alice"),
	}
	f.anchors = anchor.New(f.doc)
	f.ctl = thread.NewController(
		func() *crdt.Doc { return f.store },
		f.anchors, f.doc, f.identity,
		thread.WithIDGenerator(thread.NewSequenceGenerator("id")),
		thread.WithClock(testutil.NewStepClock()),
	)
	unbridge := f.doc.OnSelectionChange(func(r model.Range) { f.bus.Emit(bus.SelectionChanged, r) })
	t.Cleanup(unbridge)
	return f
}

func (f *fixture) activate(t *testing.T, opts ...Option) *Sync {
	t.Helper()
	s := New(f.store, f.anchors, f.doc, f.bus, opts...)
	require.NoError(t, s.Activate())
	t.Cleanup(s.Close)
	return s
}

func (f *fixture) create(t *testing.T, r model.Range, text string) string {
	t.Helper()
	id, err := f.ctl.CreateThread(r, text)
	require.NoError(t, err)
	return id
}

func TestPartitioning_ResolvedSelectedThreadStaysSelected(t *testing.T) {
	f := setupView(t, "0123456789abcdefghij")
	s := f.activate(t)

	t1 := f.create(t, model.Range{From: 0, To: 5}, "one")
	t2 := f.create(t, model.Range{From: 5, To: 10}, "two")
	require.NoError(t, f.ctl.ToggleResolve(t1, true))
	require.NoError(t, f.doc.SetSelection(model.Range{From: 1, To: 3}))

	st := s.State()
	assert.Equal(t, []string{t1}, IDs(st.Selected))
	assert.Equal(t, []string{t2}, IDs(st.UnresolvedOthers))
	assert.Equal(t, model.Range{From: 1, To: 3}, st.Selection)
}

func TestSelectionOverlap_BothThreads(t *testing.T) {
	f := setupView(t, "0123456789abcdefghij")
	s := f.activate(t)
	t1 := f.create(t, model.Range{From: 0, To: 5}, "one")
	t2 := f.create(t, model.Range{From: 5, To: 10}, "two")

	require.NoError(t, f.doc.SetSelection(model.Range{From: 4, To: 6}))
	assert.Equal(t, []string{t1, t2}, IDs(s.State().Selected))
	assert.Empty(t, s.State().UnresolvedOthers)

	require.NoError(t, f.doc.SetSelection(model.Range{From: 6, To: 6}))
	assert.Equal(t, []string{t2}, IDs(s.State().Selected))
	assert.Equal(t, []string{t1}, IDs(s.State().UnresolvedOthers))
}

func TestDeletion_DisappearsOnNextRecompute(t *testing.T) {
	f := setupView(t, "0123456789abcdefghij")
	s := f.activate(t)
	id := f.create(t, model.Range{From: 0, To: 5}, "one")
	require.NoError(t, f.doc.SetSelection(model.Range{From: 0, To: 2}))
	require.Equal(t, []string{id}, IDs(s.State().Selected))

	require.NoError(t, f.ctl.DeleteThread(id))

	st := s.State()
	assert.Empty(t, st.Selected)
	assert.Empty(t, st.UnresolvedOthers)
}

func TestOrderingLaw(t *testing.T) {
	f := setupView(t, string(bytes.Repeat([]byte("x"), 200)))
	s := f.activate(t)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 40; i++ {
		from := rng.Intn(190)
		id := f.create(t, model.Range{From: from, To: from + 1 + rng.Intn(9)}, fmt.Sprintf("c%d", i))
		if i%3 == 0 {
			require.NoError(t, f.ctl.ToggleResolve(id, true))
		}
	}
	f.create(t, model.Range{From: 60, To: 61}, "inside")
	f.create(t, model.Range{From: 195, To: 196}, "outside")
	require.NoError(t, f.doc.SetSelection(model.Range{From: 50, To: 120}))

	st := s.State()
	require.NotEmpty(t, st.Selected)
	require.NotEmpty(t, st.UnresolvedOthers)
	for _, list := range [][]ThreadView{st.Selected, st.UnresolvedOthers} {
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1].Thread, list[i].Thread
			if prev.HintRange.From == cur.HintRange.From {
				assert.Less(t, prev.ID, cur.ID)
			} else {
				assert.Less(t, prev.HintRange.From, cur.HintRange.From)
			}
		}
	}
	for _, tv := range st.UnresolvedOthers {
		assert.False(t, tv.Thread.Resolved)
	}
}

func TestOrderLive_FollowsMovedText(t *testing.T) {
	f := setupView(t, "0123456789abcdefghij")
	a := f.create(t, model.Range{From: 0, To: 3}, "first")
	b := f.create(t, model.Range{From: 10, To: 13}, "second")

	hint := f.activate(t)
	live := f.activate(t, WithOrder(OrderLive))

	require.NoError(t, f.doc.Move(0, 3, 20))
	require.NoError(t, f.doc.SetSelection(model.Range{From: 5, To: 6}))

	assert.Equal(t, []string{a, b}, IDs(hint.State().UnresolvedOthers))
	assert.Equal(t, []string{b, a}, IDs(live.State().UnresolvedOthers))

	views := live.State().UnresolvedOthers
	assert.Equal(t, model.Range{From: 7, To: 10}, views[0].Live)
	assert.Equal(t, model.Range{From: 17, To: 20}, views[1].Live)
}

func TestOrderLive_OrphanFallsBackToHint(t *testing.T) {
	f := setupView(t, "0123456789abcdefghij")
	s := f.activate(t, WithOrder(OrderLive))
	a := f.create(t, model.Range{From: 2, To: 4}, "first")
	b := f.create(t, model.Range{From: 12, To: 14}, "second")

	// deleting a's text orphans it; b shifts by the net edit
	require.NoError(t, f.doc.Insert(0, "xxxxx"))
	require.NoError(t, f.doc.Delete(7, 9))

	views := s.State().UnresolvedOthers
	require.Len(t, views, 2)
	assert.Equal(t, []string{a, b}, IDs(views))
	assert.True(t, views[0].Orphaned)
	assert.Equal(t, model.Range{}, views[0].Live)
	assert.False(t, views[1].Orphaned)
	assert.Equal(t, model.Range{From: 15, To: 17}, views[1].Live)
}

func TestRemoteUpdate_TriggersRecompute(t *testing.T) {
	f := setupView(t, "0123456789abcdefghij")
	s := f.activate(t)
	id := f.create(t, model.Range{From: 0, To: 5}, "one")

	peer := crdt.New("b")
	for _, u := range f.store.UpdatesSince(nil) {
		_, err := peer.ApplyUpdate(u)
		require.NoError(t, err)
	}
	_, err := peer.Transact(func(tx *crdt.Txn) error { return tx.SetResolved(id, true) })
	require.NoError(t, err)

	before := s.State().Version
	for _, u := range peer.UpdatesSince(f.store.Version()) {
		_, err := f.store.ApplyUpdate(u)
		require.NoError(t, err)
	}

	st := s.State()
	assert.Equal(t, before+1, st.Version)
	assert.Empty(t, st.UnresolvedOthers)
}

func TestLifecycle(t *testing.T) {
	f := setupView(t, "0123456789")
	s := New(f.store, f.anchors, f.doc, f.bus)

	assert.False(t, s.Active())
	require.NoError(t, s.Activate())
	assert.True(t, s.Active())
	assert.Equal(t, uint64(1), s.State().Version)
	assert.Equal(t, Idle, s.Phase())
	assert.ErrorIs(t, s.Activate(), ErrActive)
	assert.Equal(t, 1, f.bus.Handlers(bus.SelectionChanged))

	s.Close()
	s.Close()
	assert.False(t, s.Active())
	assert.Equal(t, 0, f.bus.Handlers(bus.SelectionChanged))
	assert.ErrorIs(t, s.Activate(), ErrClosed)

	f.create(t, model.Range{From: 0, To: 5}, "after close")
	require.NoError(t, f.doc.SetSelection(model.Range{From: 1, To: 2}))
	assert.Equal(t, uint64(1), s.State().Version)
}

func TestOnChange_ReceivesEveryRecompute(t *testing.T) {
	f := setupView(t, "0123456789")
	s := f.activate(t)

	var versions []uint64
	stop := s.OnChange(func(st State) { versions = append(versions, st.Version) })

	f.create(t, model.Range{From: 0, To: 5}, "one")
	require.NoError(t, f.doc.SetSelection(model.Range{From: 1, To: 2}))
	stop()
	require.NoError(t, f.doc.SetSelection(model.Range{From: 3, To: 4}))

	// create: store commit, then anchor mark; then the selection move.
	assert.Equal(t, []uint64{2, 3, 4}, versions)
}

func TestOnChange_PhaseIsDirtyWhileListenersRun(t *testing.T) {
	f := setupView(t, "0123456789")
	s := f.activate(t)

	var seen []Phase
	stop := s.OnChange(func(State) { seen = append(seen, s.Phase()) })
	defer stop()

	require.NoError(t, f.doc.SetSelection(model.Range{From: 1, To: 2}))
	assert.Equal(t, []Phase{Dirty}, seen)
	assert.Equal(t, Idle, s.Phase())
}

func TestCreateUnderCursor_IsSelected(t *testing.T) {
	f := setupView(t, "The quick brown fox")
	s := f.activate(t)
	require.NoError(t, f.doc.SetSelection(model.Range{From: 6, To: 6}))

	id := f.create(t, model.Range{From: 4, To: 9}, "which quick?")

	st := s.State()
	require.Equal(t, []string{id}, IDs(st.Selected))
	assert.False(t, st.Selected[0].Orphaned)
	assert.Equal(t, model.Range{From: 4, To: 9}, st.Selected[0].Live)
	assert.Empty(t, st.UnresolvedOthers)
}

func TestHintOrder_EditsRefreshAnchors(t *testing.T) {
	f := setupView(t, "The quick brown fox")
	s := f.activate(t)
	id := f.create(t, model.Range{From: 4, To: 9}, "which quick?")

	// The cursor at 0 is left in place, so only the edit can notify.
	require.NoError(t, f.doc.Delete(4, 10))

	st := s.State()
	require.Equal(t, []string{id}, IDs(st.UnresolvedOthers))
	assert.True(t, st.UnresolvedOthers[0].Orphaned)
}

func TestParseOrder(t *testing.T) {
	o, ok := ParseOrder("live")
	assert.True(t, ok)
	assert.Equal(t, OrderLive, o)

	o, ok = ParseOrder("")
	assert.True(t, ok)
	assert.Equal(t, OrderHint, o)

	_, ok = ParseOrder("sideways")
	assert.False(t, ok)
	assert.Equal(t, "live", OrderLive.String())
}

func TestRender_Golden(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, f *fixture)
	}{
		{"render_partitioned", func(t *testing.T, f *fixture) {
			t1 := f.create(t, model.Range{From: 0, To: 5}, "Check this")
			t2 := f.create(t, model.Range{From: 5, To: 10}, "Second")
			f.create(t, model.Range{From: 12, To: 15}, "Third")
			f.identity.SwitchTo("bob")
			_, err := f.ctl.AddReply(t2, "Agreed")
			require.NoError(t, err)
			require.NoError(t, f.ctl.ToggleResolve(t1, true))
			require.NoError(t, f.doc.SetSelection(model.Range{From: 2, To: 3}))
		}},
		{"render_empty", func(t *testing.T, f *fixture) {}},
		{"render_selected_only", func(t *testing.T, f *fixture) {
			f.create(t, model.Range{From: 0, To: 5}, "Only")
			require.NoError(t, f.doc.SetSelection(model.Range{From: 1, To: 1}))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupView(t, "0123456789abcdefghij")
			s := f.activate(t)
			tt.build(t, f)

			var buf bytes.Buffer
			require.NoError(t, Render(&buf, s.State()))

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestRender_Orphaned(t *testing.T) {
	f := setupView(t, "0123456789abcdefghij")
	s := f.activate(t)
	f.create(t, model.Range{From: 3, To: 6}, "gone soon")
	require.NoError(t, f.doc.Delete(2, 8))

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s.State()))
	assert.Contains(t, buf.String(), "id-1 (1 reply) orphaned, was [3,6)")
}
