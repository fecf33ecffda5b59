// Package replication moves thread store updates between replicas.
//
// It stands in for a real network transport. Exchange performs a direct
// two-way delta sync; Link models an asynchronous one-way channel whose
// delivery may be delayed, batched or shuffled, which is what the merge
// rules in crdt have to tolerate.
//
// Updates cross a Link as CBOR bytes, the same encoding the store
// persists, so every transfer exercises decode and validation.
package replication
