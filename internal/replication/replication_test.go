package replication

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marginalia/internal/crdt"
	"github.com/roach88/marginalia/internal/model"
)

func comment(id string) model.Comment {
	return model.Comment{ID: id, AuthorID: "u", AuthorName: "U", CreatedAt: 1, Text: id}
}

func create(t *testing.T, d *crdt.Doc, id string) {
	t.Helper()
	_, err := d.Transact(func(tx *crdt.Txn) error {
		return tx.PutThread(id, model.Range{From: 0, To: 1}, comment(id+"-c0"))
	})
	require.NoError(t, err)
}

func reply(t *testing.T, d *crdt.Doc, id, cid string) {
	t.Helper()
	_, err := d.Transact(func(tx *crdt.Txn) error { return tx.AppendComment(id, comment(cid)) })
	require.NoError(t, err)
}

func TestExchange_ConvergesConcurrentReplies(t *testing.T) {
	a, b := crdt.New("a"), crdt.New("b")
	create(t, a, "T1")
	_, err := Exchange(a, b)
	require.NoError(t, err)

	reply(t, a, "T1", "from-a")
	reply(t, b, "T1", "from-b")

	stats, err := Exchange(a, b)
	require.NoError(t, err)
	assert.Equal(t, Stats{AToB: 1, BToA: 1}, stats)

	ta, _ := a.Get("T1")
	tb, _ := b.Get("T1")
	assert.Equal(t, ta, tb)
	assert.Len(t, ta.Comments, 3)

	stats, err = Exchange(a, b)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestLink_DeliversOnDemand(t *testing.T) {
	a, b := crdt.New("a"), crdt.New("b")
	link := NewLink(b)
	sub := link.Connect(a)
	defer sub.Close()

	create(t, a, "T1")
	reply(t, a, "T1", "r1")
	assert.Equal(t, 2, link.Len())
	assert.False(t, b.Has("T1"))

	n, err := link.Deliver(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, b.Has("T1"))

	n, err = link.Flush()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, link.Len())

	th, _ := b.Get("T1")
	assert.Len(t, th.Comments, 2)
}

func TestLink_ShuffledDeliveryConverges(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			a, b := crdt.New("a"), crdt.New("b")
			link := NewLink(b, WithShuffle(seed))
			sub := link.Connect(a)
			defer sub.Close()

			create(t, a, "T1")
			for i := 0; i < 10; i++ {
				reply(t, a, "T1", fmt.Sprintf("r%d", i))
			}
			_, err := a.Transact(func(tx *crdt.Txn) error { return tx.SetResolved("T1", true) })
			require.NoError(t, err)

			_, err = link.Flush()
			require.NoError(t, err)

			assert.Equal(t, 0, b.Pending())
			ta, _ := a.Get("T1")
			tb, ok := b.Get("T1")
			require.True(t, ok)
			assert.Equal(t, ta, tb)
		})
	}
}

func TestLink_TwoWayEchoSettles(t *testing.T) {
	a, b := crdt.New("a"), crdt.New("b")
	ab, ba := NewLink(b), NewLink(a)
	subA := ab.Connect(a)
	defer subA.Close()
	subB := ba.Connect(b)
	defer subB.Close()

	create(t, a, "T1")
	_, err := ab.Flush()
	require.NoError(t, err)

	// b forwards what it applied; a ignores its own update coming back
	assert.Equal(t, 1, ba.Len())
	_, err = ba.Flush()
	require.NoError(t, err)
	assert.Equal(t, 0, ab.Len())
	assert.Equal(t, a.Version(), b.Version())
}

func TestLink_RunStopsWhenClosed(t *testing.T) {
	a, b := crdt.New("a"), crdt.New("b")
	link := NewLink(b)
	sub := link.Connect(a)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()

	create(t, a, "T1")
	link.Close()

	require.NoError(t, <-done)
	assert.True(t, b.Has("T1"))
	assert.NoError(t, link.Send(crdt.Update{}))
	assert.Equal(t, 0, link.Len())
}

func TestLink_RunHonoursContext(t *testing.T) {
	link := NewLink(crdt.New("b"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, link.Run(ctx), context.Canceled)
}

func TestLink_RejectsCorruptPayload(t *testing.T) {
	b := crdt.New("b")
	link := NewLink(b)
	link.queue = append(link.queue, []byte{0xff})

	_, err := link.Flush()
	assert.ErrorIs(t, err, crdt.ErrDecode)
}
