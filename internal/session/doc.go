// Package session implements the indexing session: the single-pass state
// machine that takes a configuration and a set of headers through parsing,
// resolution and mapping to the written output.
//
// Lifecycle:
//
//	Created -> Configured -> Indexed -> Filtered -> Mapped -> Written -> Closed
//
// Only forward transitions are allowed. Configure may repeat until Index,
// AddMapping may repeat until WriteTo, and Close is accepted in any state.
//
// Every call runs on the session's worker goroutine, one at a time, so the
// tree has a single writer. A session owns its forest, its type cache and
// its resolved tree; nothing is shared with other sessions.
//
// Fatal errors abort the session: the error is logged first, the tree is
// dropped and the session moves to Closed, so WriteTo can never emit
// partial output afterwards. Rejected configurations, rejected mapping
// definitions and invalid transitions leave the session as it was.
package session
