// Package thread implements the command surface for comment threads.
//
// A Controller combines a thread store mutation with an anchor operation
// so that each command reads as one logical step to its caller.
//
// ARCHITECTURE:
//
//	CreateThread ─┬─► crdt.Doc.Transact (put thread + first comment)
//	              └─► anchor.Anchors.Place ──fail──► compensating delete
//	AddReply / ToggleResolve ─► crdt.Doc.Transact
//	DeleteThread ─┬─► crdt.Doc.Transact (delete)
//	              └─► anchor.Anchors.RemoveAll
//	NavigateToThread ─► anchor.Anchors.Locate ─► Editor selection + scroll
//
// CRITICAL PATTERNS:
//   - The range is validated before any store mutation; an InvalidRange
//     failure never leaves a record behind
//   - Every condition is returned as *Error with a Code; nothing panics on
//     user input
//   - Identity, ids and wall time are injected capabilities, never ambient
//   - The store is reached through a StoreProvider so commands fail fast
//     with STORE_UNAVAILABLE until the document's store is initialized
//
// Orphans: DeleteThread removes anchors eagerly. Deletes that arrive from
// other replicas leave anchors behind; CollectOrphans removes them.
package thread
