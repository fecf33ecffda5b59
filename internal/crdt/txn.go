package crdt

import (
	"fmt"

	"github.com/roach88/marginalia/internal/model"
)

// Txn stages operations for one atomic commit. It is only valid inside
// the function passed to Transact.
type Txn struct {
	doc     *Doc
	ops     []Op
	created map[string]bool
	deleted map[string]bool
	closed  bool
}

// Transact runs fn against a new transaction and commits everything it
// staged as a single Update. If fn returns an error nothing is committed.
// A transaction that stages nothing returns the zero Update.
//
// fn runs while the write lock is held. It may read the Doc (Get, All,
// Version) but must not call Transact or ApplyUpdate: the lock is not
// reentrant and the call deadlocks. Stage further changes on tx instead.
//
// Observers are notified after the commit, outside the write lock. A
// Transact issued from an observer is committed immediately; its event is
// queued behind the event currently being delivered.
func (d *Doc) Transact(fn func(tx *Txn) error) (Update, error) {
	d.writeMu.Lock()

	tx := &Txn{
		doc:     d,
		created: make(map[string]bool),
		deleted: make(map[string]bool),
	}
	err := fn(tx)
	tx.closed = true
	if err != nil || len(tx.ops) == 0 {
		d.writeMu.Unlock()
		return Update{}, err
	}

	d.mu.Lock()
	u := Update{
		ID:      UpdateID{Replica: d.replica, Seq: d.version[d.replica] + 1},
		Lamport: d.clock.Next(),
		Ops:     tx.ops,
	}
	ev := d.applyLocked(u, OriginLocal)
	d.mu.Unlock()

	d.observers.enqueue(ev)
	d.writeMu.Unlock()

	d.observers.drain()
	return u, nil
}

// PutThread creates a thread with its first comment. The id must be new
// to this replica.
func (tx *Txn) PutThread(id string, hint model.Range, first model.Comment) error {
	if err := tx.usable(id); err != nil {
		return err
	}
	if tx.exists(id) {
		return fmt.Errorf("%w: %s", ErrThreadExists, id)
	}
	h, c := hint, first
	tx.ops = append(tx.ops, Op{Kind: OpPutThread, ThreadID: id, Hint: &h, Comment: &c})
	tx.created[id] = true
	return nil
}

// AppendComment appends a comment to an existing thread.
func (tx *Txn) AppendComment(id string, c model.Comment) error {
	if err := tx.require(id); err != nil {
		return err
	}
	cc := c
	tx.ops = append(tx.ops, Op{Kind: OpAppendComment, ThreadID: id, Comment: &cc})
	return nil
}

// SetResolved writes the resolved flag of an existing thread.
func (tx *Txn) SetResolved(id string, resolved bool) error {
	if err := tx.require(id); err != nil {
		return err
	}
	tx.ops = append(tx.ops, Op{Kind: OpSetResolved, ThreadID: id, Resolved: resolved})
	return nil
}

// SetHint writes the hint range of an existing thread.
func (tx *Txn) SetHint(id string, hint model.Range) error {
	if err := tx.require(id); err != nil {
		return err
	}
	h := hint
	tx.ops = append(tx.ops, Op{Kind: OpSetHint, ThreadID: id, Hint: &h})
	return nil
}

// DeleteThread removes a thread. Later operations on the id, from any
// replica, are dropped.
func (tx *Txn) DeleteThread(id string) error {
	if err := tx.require(id); err != nil {
		return err
	}
	tx.ops = append(tx.ops, Op{Kind: OpDeleteThread, ThreadID: id})
	tx.deleted[id] = true
	return nil
}

// Get returns the thread as it would look if the transaction committed
// now.
func (tx *Txn) Get(id string) (model.Thread, bool) {
	if tx.closed || tx.deleted[id] || tx.doc.Deleted(id) {
		return model.Thread{}, false
	}
	t, ok := tx.doc.Get(id)
	if ok {
		t = t.Clone()
	}
	for _, op := range tx.ops {
		if op.ThreadID != id {
			continue
		}
		switch op.Kind {
		case OpPutThread:
			t = model.Thread{ID: id, HintRange: *op.Hint, Comments: []model.Comment{*op.Comment}}
			ok = true
		case OpAppendComment:
			t.Comments = append(t.Comments, *op.Comment)
		case OpSetResolved:
			t.Resolved = op.Resolved
		case OpSetHint:
			t.HintRange = *op.Hint
		}
	}
	return t, ok
}

// Len returns the number of staged operations.
func (tx *Txn) Len() int {
	return len(tx.ops)
}

func (tx *Txn) usable(id string) error {
	if tx.closed {
		return ErrTxnClosed
	}
	if id == "" {
		return fmt.Errorf("%w: empty thread id", ErrInvalidUpdate)
	}
	if tx.deleted[id] || tx.doc.Deleted(id) {
		return fmt.Errorf("%w: %s", ErrDeleted, id)
	}
	return nil
}

func (tx *Txn) require(id string) error {
	if err := tx.usable(id); err != nil {
		return err
	}
	if !tx.exists(id) {
		return fmt.Errorf("%w: %s", ErrUnknownThread, id)
	}
	return nil
}

func (tx *Txn) exists(id string) bool {
	return tx.created[id] || tx.doc.Has(id)
}
