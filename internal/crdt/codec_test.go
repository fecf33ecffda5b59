package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marginalia/internal/model"
)

func TestEncodeUpdate_IsDeterministic(t *testing.T) {
	d := New("a")
	u := createThread(t, d, "T1", model.Range{From: 2, To: 7}, comment("c1", "hello"))

	first, err := EncodeUpdate(u)
	require.NoError(t, err)
	second, err := EncodeUpdate(u)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	h1, err := HashUpdate(u)
	require.NoError(t, err)
	assert.Equal(t, model.UpdateHash(first), h1)
	assert.Len(t, h1, 64)
}

func TestApplyEncoded_MergesIntoPeer(t *testing.T) {
	a, b := New("a"), New("b")
	u := createThread(t, a, "T1", model.Range{From: 2, To: 7}, comment("c1", "hello"))

	data, err := EncodeUpdate(u)
	require.NoError(t, err)

	applied, err := b.ApplyEncoded(data)
	require.NoError(t, err)
	assert.True(t, applied)

	ta, _ := a.Get("T1")
	tb, ok := b.Get("T1")
	require.True(t, ok)
	assert.Equal(t, ta, tb)
}

func TestDecodeUpdate_Garbage(t *testing.T) {
	_, err := DecodeUpdate([]byte{0xff, 0x00, 0x13})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDiagnose_ShowsFields(t *testing.T) {
	d := New("a")
	u := createThread(t, d, "T1", model.Range{From: 0, To: 1}, comment("c1", "hi"))
	data, err := EncodeUpdate(u)
	require.NoError(t, err)

	diag, err := Diagnose(data)
	require.NoError(t, err)
	assert.Contains(t, diag, `"put_thread"`)
	assert.Contains(t, diag, `"T1"`)
}
