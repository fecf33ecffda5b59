// Package harness runs scripted multi-replica comment sessions.
//
// A scenario names a set of replicas that all start from the same text,
// then runs a flow of steps, each against one replica. Replicas only
// learn about each other through sync and relay steps, so a scenario can
// stage concurrent edits, late delivery and anchor loss precisely.
//
// # Scenario Format
//
//	name: reply_race
//	description: "Replies from two replicas merge in stamp order"
//	text: "The quick brown fox"
//	replicas: [alice, bob]
//	flow:
//	  - replica: alice
//	    invoke: create
//	    args: {from: 4, to: 9, text: "quick?"}
//	    expect:
//	      result: {thread: alice-1}
//	  - replica: bob
//	    invoke: sync
//	    args: {with: alice, document: true}
//	  - replica: bob
//	    invoke: reply
//	    args: {thread: nobody-1, text: "hm"}
//	    expect:
//	      error: NOT_FOUND_THREAD
//	assertions:
//	  - type: thread
//	    replica: bob
//	    thread: alice-1
//	    expect: {comments: 1, resolved: false}
//	  - type: converged
//
// Every replica is deterministic: ids come from a per-replica sequence
// ("alice-1", "alice-2", ...) and comment timestamps from a stepping
// clock, so a run's snapshot can be compared byte for byte.
//
// # Actions
//
//   - create {from, to, text}, reply {thread, text}
//   - resolve {thread}, reopen {thread}, delete {thread}, navigate {thread}
//   - select {from, to}
//   - insert {pos, text}, delete_text {from, to}, move {from, to, dest}
//   - sync {with, document}: exchange thread updates both ways; with
//     document: true, also copy the peer's document (text and anchors)
//   - relay {with, skip, seed}: one-way delivery of the peer's updates
//     through a replication link, dropping skip leading updates and
//     shuffling with seed
//   - gc: collect anchors of deleted threads
//
// # Assertion Types
//
//   - selected, unresolved: the replica's sidebar lists these ids, in order
//   - thread: subset match against exists, comments, resolved, orphaned,
//     from and to
//   - converged: every replica holds identical threads
//   - trace_count, trace_order: over the invocation trace
//
// # Golden Files
//
// RunWithGolden stores the trace and every replica's rendered sidebar in
// testdata/golden/<name>.golden.
package harness
