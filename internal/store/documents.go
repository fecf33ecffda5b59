package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/marginalia/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// SaveDocument stores a snapshot under name, replacing any previous one.
func (s *Store) SaveDocument(ctx context.Context, name string, snapshot []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (name, snapshot, hash) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET snapshot = excluded.snapshot, hash = excluded.hash
	`, name, snapshot, model.DocumentHash(snapshot))
	if err != nil {
		return fmt.Errorf("save document %q: %w", name, err)
	}
	return nil
}

// LoadDocument returns the snapshot stored under name, or ErrNotFound.
func (s *Store) LoadDocument(ctx context.Context, name string) ([]byte, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM documents WHERE name = ?`, name).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load document %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", name, err)
	}
	return snapshot, nil
}

// DocumentHash returns the content hash of the snapshot stored under
// name, or ErrNotFound.
func (s *Store) DocumentHash(ctx context.Context, name string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM documents WHERE name = ?`, name).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document hash %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("document hash %q: %w", name, err)
	}
	return hash, nil
}

// Meta returns the value stored under key, or ErrNotFound.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta stores value under key.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}
