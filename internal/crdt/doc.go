// Package crdt implements the replicated thread store: a keyed map from
// thread id to thread record whose replicas converge without coordination.
//
// ARCHITECTURE:
//
// Transactions:
// Every local mutation runs inside Doc.Transact. Operations are staged in a
// Txn and validated against committed state plus earlier staged operations.
// Nothing is applied if the callback fails. On success the whole batch is
// stamped as one Update and applied under a single write lock, so readers
// never observe a record with only some of its fields written.
//
// Identity and Time:
// Updates are identified by (replica, seq) where seq is contiguous per
// replica. Ordering between replicas uses a Lamport clock; wall-clock time
// never decides a merge.
//
// Merge Rules:
//   - resolved and hint range: last writer wins by Stamp (lamport, replica,
//     op index), deterministic under clock skew
//   - comments: grow-only, ordered by Stamp, never dropped by a merge
//   - existence: a delete tombstones the id; operations that reach a
//     replica after the tombstone are dropped (known race, accepted)
//
// Delivery:
// ApplyUpdate is idempotent. Updates that arrive ahead of a gap in their
// origin's sequence are parked and applied once the gap fills.
//
// Notifications:
// Observers registered with ObserveDeep receive one ChangeEvent per
// committed Update, local or remote, in commit order. Events are delivered
// after the write lock is released, so an observer may read the store or
// even commit a follow-up transaction.
package crdt
