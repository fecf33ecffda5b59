package store

import (
	"context"
	"fmt"

	"github.com/roach88/marginalia/internal/crdt"
	"github.com/roach88/marginalia/internal/model"
)

// AppendUpdate persists an update. It reports whether a new row was
// written; appending the same update again is a no-op.
//
// A different payload under an already stored (replica, seq) is an error.
func (s *Store) AppendUpdate(ctx context.Context, u crdt.Update) (bool, error) {
	payload, err := crdt.EncodeUpdate(u)
	if err != nil {
		return false, fmt.Errorf("append update: %w", err)
	}
	hash := model.UpdateHash(payload)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO updates (hash, replica, seq, lamport, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, u.ID.Replica, int64(u.ID.Seq), int64(u.Lamport), payload)
	if err != nil {
		return false, fmt.Errorf("append update %s: %w", u.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append update %s: rows affected: %w", u.ID, err)
	}
	return n == 1, nil
}

// LoadUpdates returns every stored update in causal order:
// ORDER BY lamport, replica, seq.
//
// Returns an empty slice (not nil) when nothing is stored.
func (s *Store) LoadUpdates(ctx context.Context) ([]crdt.Update, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM updates
		ORDER BY lamport ASC, replica COLLATE BINARY ASC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	updates := []crdt.Update{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		u, err := crdt.DecodeUpdate(payload)
		if err != nil {
			return nil, fmt.Errorf("load update: %w", err)
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updates: %w", err)
	}
	return updates, nil
}

// CountUpdates returns the number of stored updates.
func (s *Store) CountUpdates(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM updates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count updates: %w", err)
	}
	return n, nil
}

// MaxLamport returns the largest Lamport stamp stored, or 0.
func (s *Store) MaxLamport(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(lamport), 0) FROM updates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("max lamport: %w", err)
	}
	return uint64(n), nil
}

// Replay applies every stored update to doc and returns how many were
// newly applied.
func (s *Store) Replay(ctx context.Context, doc *crdt.Doc) (int, error) {
	updates, err := s.LoadUpdates(ctx)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, u := range updates {
		ok, err := doc.ApplyUpdate(u)
		if err != nil {
			return applied, fmt.Errorf("replay %s: %w", u.ID, err)
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}
