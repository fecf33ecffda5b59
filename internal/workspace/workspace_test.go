package workspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marginalia/internal/config"
	"github.com/roach88/marginalia/internal/model"
	"github.com/roach88/marginalia/internal/testutil"
	"github.com/roach88/marginalia/internal/thread"
	"github.com/roach88/marginalia/internal/view"
)

const sample = "The quick brown fox jumps over the lazy dog."

func testConfig(t *testing.T, replica string) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Replica = replica
	cfg.DB = filepath.Join(t.TempDir(), "ws.db")
	return cfg
}

func memory(t *testing.T, replica string) *Workspace {
	t.Helper()
	ws, err := NewMemory(replica, config.Defaults(),
		WithText(sample),
		WithIdentity(testutil.NewFixedIdentity(replica)),
		WithIDGenerator(thread.NewSequenceGenerator(replica)),
		WithClock(testutil.NewStepClock()))
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t, "laptop")

	ws, err := Open(t.Context(), cfg, WithText(sample))
	require.NoError(t, err)
	id, err := ws.Controller.CreateThread(model.Range{From: 4, To: 9}, "quick?")
	require.NoError(t, err)
	_, err = ws.Controller.AddReply(id, "yes, quick")
	require.NoError(t, err)
	first := ws.Threads.Clock().Current()
	saved, err := ws.Save(t.Context())
	require.NoError(t, err)
	assert.True(t, saved)
	require.NoError(t, ws.Close())

	cfg.Replica = ""
	reopened, err := Open(t.Context(), cfg, WithText("ignored because a snapshot exists"))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "laptop", reopened.Replica())
	assert.Equal(t, sample, reopened.Doc.Text())

	got, err := reopened.Controller.GetThread(id)
	require.NoError(t, err)
	assert.Len(t, got.Comments, 2)

	r, err := reopened.Controller.Locate(id)
	require.NoError(t, err)
	assert.Equal(t, model.Range{From: 4, To: 9}, r)

	_, err = reopened.Controller.AddReply(id, "after reopen")
	require.NoError(t, err)
	assert.Greater(t, reopened.Threads.Clock().Current(), first)

	count, err := reopened.store.CountUpdates(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestOpen_AssignsReplicaToNewDatabase(t *testing.T) {
	cfg := testConfig(t, "")

	ws, err := Open(t.Context(), cfg)
	require.NoError(t, err)
	assigned := ws.Replica()
	require.NotEmpty(t, assigned)
	require.NoError(t, ws.Close())

	again, err := Open(t.Context(), cfg)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, assigned, again.Replica())
}

func TestOpen_RejectsForeignReplica(t *testing.T) {
	cfg := testConfig(t, "laptop")
	ws, err := Open(t.Context(), cfg)
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	cfg.Replica = "desktop"
	_, err = Open(t.Context(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "laptop")
}

func TestOpen_UnknownOrder(t *testing.T) {
	cfg := testConfig(t, "laptop")
	cfg.Order = "sideways"
	_, err := Open(t.Context(), cfg)
	require.Error(t, err)
}

func TestMemory_SelectionDrivesView(t *testing.T) {
	ws := memory(t, "alice")
	require.NoError(t, ws.View.Activate())

	id, err := ws.Controller.CreateThread(model.Range{From: 16, To: 19}, "fox")
	require.NoError(t, err)
	assert.Equal(t, id, ws.Focused())

	require.NoError(t, ws.Doc.SetSelection(model.Range{From: 17, To: 17}))
	assert.Equal(t, []string{id}, view.IDs(ws.View.State().Selected))

	require.NoError(t, ws.Doc.SetSelection(model.Range{From: 0, To: 3}))
	st := ws.View.State()
	assert.Empty(t, st.Selected)
	assert.Equal(t, []string{id}, view.IDs(st.UnresolvedOthers))
}

func TestMemory_CreateAtCursorIsSelected(t *testing.T) {
	ws := memory(t, "alice")
	require.NoError(t, ws.View.Activate())
	require.NoError(t, ws.Doc.SetSelection(model.Range{From: 6, To: 6}))

	id, err := ws.Controller.CreateThread(model.Range{From: 4, To: 9}, "quick?")
	require.NoError(t, err)

	st := ws.View.State()
	require.Equal(t, []string{id}, view.IDs(st.Selected))
	assert.False(t, st.Selected[0].Orphaned)
	assert.Empty(t, st.UnresolvedOthers)
}

func TestMerge_ThreadsThenDocument(t *testing.T) {
	alice := memory(t, "alice")
	bob := memory(t, "bob")
	require.NoError(t, bob.View.Activate())

	id, err := alice.Controller.CreateThread(model.Range{From: 4, To: 9}, "quick?")
	require.NoError(t, err)

	stats, err := bob.Merge(alice)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BToA)
	assert.Equal(t, 0, stats.AToB)

	require.True(t, bob.Threads.Has(id))
	_, err = bob.Controller.Locate(id)
	assert.True(t, thread.IsAnchorMissing(err), "anchor lives in alice's document until it is copied")

	st := bob.View.State()
	require.Len(t, st.UnresolvedOthers, 1)
	assert.True(t, st.UnresolvedOthers[0].Orphaned)

	require.NoError(t, bob.AdoptDocument(alice))
	r, err := bob.Controller.Locate(id)
	require.NoError(t, err)
	assert.Equal(t, model.Range{From: 4, To: 9}, r)
	assert.False(t, bob.View.State().UnresolvedOthers[0].Orphaned)
}

func TestSave_MemoryIsNoop(t *testing.T) {
	ws := memory(t, "alice")
	assert.False(t, ws.Persistent())
	saved, err := ws.Save(t.Context())
	assert.NoError(t, err)
	assert.False(t, saved)
}

func TestSave_SkipsUnchangedSnapshot(t *testing.T) {
	ws, err := Open(t.Context(), testConfig(t, "laptop"), WithText(sample))
	require.NoError(t, err)
	defer ws.Close()

	saved, err := ws.Save(t.Context())
	require.NoError(t, err)
	assert.True(t, saved, "first save writes")

	saved, err = ws.Save(t.Context())
	require.NoError(t, err)
	assert.False(t, saved, "same content is not rewritten")

	require.NoError(t, ws.Doc.Insert(0, "> "))
	saved, err = ws.Save(t.Context())
	require.NoError(t, err)
	assert.True(t, saved, "an edit changes the hash")
}
