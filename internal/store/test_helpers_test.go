package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/marginalia/internal/crdt"
	"github.com/roach88/marginalia/internal/model"
)

// createTestStore opens a fresh database under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// commitThread creates a thread on d and returns the committed update.
func commitThread(t *testing.T, d *crdt.Doc, id, text string) crdt.Update {
	t.Helper()
	u, err := d.Transact(func(tx *crdt.Txn) error {
		return tx.PutThread(id, model.Range{From: 0, To: 4}, model.Comment{
			ID: id + "-c", AuthorID: "u1", AuthorName: "Una", CreatedAt: 1700000000000, Text: text,
		})
	})
	require.NoError(t, err)
	return u
}
