package crdt

import "errors"

var (
	// ErrUnknownThread is returned when an operation targets an id that has
	// no visible record.
	ErrUnknownThread = errors.New("crdt: unknown thread")

	// ErrThreadExists is returned when PutThread reuses a live id.
	ErrThreadExists = errors.New("crdt: thread already exists")

	// ErrDeleted is returned when an operation targets a tombstoned id.
	ErrDeleted = errors.New("crdt: thread deleted")

	// ErrTxnClosed is returned when a Txn is used after Transact returned.
	ErrTxnClosed = errors.New("crdt: transaction closed")

	// ErrInvalidUpdate is returned by ApplyUpdate for malformed updates.
	ErrInvalidUpdate = errors.New("crdt: invalid update")

	// ErrDecode is returned when an encoded update cannot be decoded.
	ErrDecode = errors.New("crdt: decode update")
)
