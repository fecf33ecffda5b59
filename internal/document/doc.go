// Package document is an in-memory rich-text document: a flat sequence of
// characters where every character carries a set of marks.
//
// It is the document engine the comment core runs against in the CLI,
// the scenario harness and tests. Only what anchoring needs is modelled:
// text edits, mark application, mark queries and a selection.
//
// Mark behaviour at edit boundaries:
//   - Inserted text inherits the inclusive marks of the character before
//     the insertion point, so typing at the end of a marked span extends
//     it and typing at the start does not.
//   - Non-inclusive marks are only inherited strictly inside a span.
//   - Deleting every character of a span removes the mark with it.
//   - Moving text carries its marks along.
//
// Listeners registered with OnSelectionChange and OnUpdate are invoked
// after the document lock is released, so they may read the document.
package document
