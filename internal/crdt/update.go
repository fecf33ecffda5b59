package crdt

import (
	"fmt"

	"github.com/roach88/marginalia/internal/model"
)

// UpdateID identifies a committed transaction. Seq is contiguous per
// replica, starting at 1.
type UpdateID struct {
	Replica string `cbor:"replica"`
	Seq     uint64 `cbor:"seq"`
}

func (id UpdateID) String() string {
	return fmt.Sprintf("%s/%d", id.Replica, id.Seq)
}

// Stamp totally orders individual operations across replicas.
type Stamp struct {
	Lamport uint64
	Replica string
	Index   int
}

// Less reports whether s happened before o in the merge order.
func (s Stamp) Less(o Stamp) bool {
	if s.Lamport != o.Lamport {
		return s.Lamport < o.Lamport
	}
	if s.Replica != o.Replica {
		return s.Replica < o.Replica
	}
	return s.Index < o.Index
}

// OpKind names a field-level operation.
type OpKind string

const (
	// OpPutThread creates a record: id, hint range, resolved=false and the
	// first comment, all at once.
	OpPutThread OpKind = "put_thread"
	// OpAppendComment appends one comment.
	OpAppendComment OpKind = "append_comment"
	// OpSetResolved writes the resolved flag.
	OpSetResolved OpKind = "set_resolved"
	// OpSetHint writes the cached hint range.
	OpSetHint OpKind = "set_hint"
	// OpDeleteThread removes the record and tombstones its id.
	OpDeleteThread OpKind = "delete_thread"
)

// Op is one field-level operation inside an Update.
type Op struct {
	Kind     OpKind         `cbor:"kind"`
	ThreadID string         `cbor:"thread"`
	Hint     *model.Range   `cbor:"hint,omitempty"`
	Comment  *model.Comment `cbor:"comment,omitempty"`
	Resolved bool           `cbor:"resolved,omitempty"`
}

// Update is one committed transaction: the unit of replication.
type Update struct {
	ID      UpdateID `cbor:"id"`
	Lamport uint64   `cbor:"lamport"`
	Ops     []Op     `cbor:"ops"`
}

// IsZero reports whether u is the empty update returned by a transaction
// that staged nothing.
func (u Update) IsZero() bool {
	return u.ID.Replica == "" && u.ID.Seq == 0 && len(u.Ops) == 0
}

func (u Update) stamp(index int) Stamp {
	return Stamp{Lamport: u.Lamport, Replica: u.ID.Replica, Index: index}
}

// ThreadIDs returns the distinct thread ids touched by the update, in
// operation order.
func (u Update) ThreadIDs() []string {
	seen := make(map[string]bool, len(u.Ops))
	ids := make([]string, 0, len(u.Ops))
	for _, op := range u.Ops {
		if seen[op.ThreadID] {
			continue
		}
		seen[op.ThreadID] = true
		ids = append(ids, op.ThreadID)
	}
	return ids
}

func (u Update) validate() error {
	if u.ID.Replica == "" || u.ID.Seq == 0 {
		return fmt.Errorf("%w: missing id", ErrInvalidUpdate)
	}
	if u.Lamport == 0 {
		return fmt.Errorf("%w: %s has no lamport stamp", ErrInvalidUpdate, u.ID)
	}
	for i, op := range u.Ops {
		if op.ThreadID == "" {
			return fmt.Errorf("%w: %s op %d has no thread id", ErrInvalidUpdate, u.ID, i)
		}
		switch op.Kind {
		case OpPutThread:
			if op.Hint == nil || op.Comment == nil {
				return fmt.Errorf("%w: %s op %d put_thread needs hint and comment", ErrInvalidUpdate, u.ID, i)
			}
		case OpAppendComment:
			if op.Comment == nil {
				return fmt.Errorf("%w: %s op %d append_comment needs comment", ErrInvalidUpdate, u.ID, i)
			}
		case OpSetHint:
			if op.Hint == nil {
				return fmt.Errorf("%w: %s op %d set_hint needs hint", ErrInvalidUpdate, u.ID, i)
			}
		case OpSetResolved, OpDeleteThread:
		default:
			return fmt.Errorf("%w: %s op %d unknown kind %q", ErrInvalidUpdate, u.ID, i, op.Kind)
		}
	}
	return nil
}
