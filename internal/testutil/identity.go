package testutil

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/marginalia/internal/model"
)

// Author returns a deterministic author for a short handle:
// Author("alice") is {ID: "user-alice", Name: "Alice"}.
func Author(handle string) model.Author {
	return model.Author{
		ID:   "user-" + handle,
		Name: cases.Title(language.English).String(handle),
	}
}

// FixedIdentity always reports the same author. It satisfies the
// controller's Identity capability.
type FixedIdentity struct {
	Author model.Author
}

// NewFixedIdentity creates an identity for Author(handle).
func NewFixedIdentity(handle string) *FixedIdentity {
	return &FixedIdentity{Author: Author(handle)}
}

// CurrentUser returns the fixed author.
func (f *FixedIdentity) CurrentUser() model.Author {
	return f.Author
}

// SwitchTo changes the reported author, for tests that interleave users
// on one replica.
func (f *FixedIdentity) SwitchTo(handle string) {
	f.Author = Author(handle)
}
