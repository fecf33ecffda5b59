// Package store provides SQLite-backed durable storage for one replica.
//
// Three tables:
//   - updates: every thread store update this replica has applied, local
//     or remote, as CBOR bytes
//   - documents: document snapshots by name
//   - meta: replica settings such as the replica name
//
// # Critical Patterns
//
// Content-Addressed Idempotency
//   - updates.hash is the blake3 hash of the payload (model.UpdateHash)
//   - INSERT ... ON CONFLICT DO NOTHING makes re-appending a no-op
//   - UNIQUE(replica, seq) rejects two different payloads claiming the
//     same update id
//
// Deterministic Replay
//   - LoadUpdates orders by lamport, replica, seq: a causal order, so
//     replay never parks an update
//   - Ordering never uses wall time
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
