package replication

import (
	"fmt"

	"github.com/roach88/marginalia/internal/crdt"
)

// Stats counts updates applied by a sync.
type Stats struct {
	AToB int
	BToA int
}

// Pull applies to dst every update src has that dst has not seen, and
// returns how many were applied.
func Pull(dst, src *crdt.Doc) (int, error) {
	applied := 0
	for _, u := range src.UpdatesSince(dst.Version()) {
		ok, err := dst.ApplyUpdate(u)
		if err != nil {
			return applied, fmt.Errorf("pull %s into %s: %w", u.ID, dst.Replica(), err)
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

// Exchange syncs a and b in both directions. Afterwards both hold the
// same updates and therefore the same threads.
func Exchange(a, b *crdt.Doc) (Stats, error) {
	var stats Stats
	var err error
	if stats.AToB, err = Pull(b, a); err != nil {
		return stats, err
	}
	if stats.BToA, err = Pull(a, b); err != nil {
		return stats, err
	}
	return stats, nil
}
