// Package model provides the plain value types shared by every other
// marginalia package: ranges, authors, comments, thread snapshots and the
// anchor tag value.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Thread values handed out by the store are snapshots. Callers may keep
//     them across later mutations; nothing in them aliases live state.
//   - Ranges are half-open [From, To) offsets into the flat document text.
//   - Timestamps are unix milliseconds (int64), never floats.
//   - JSON tags use snake_case.
package model
