// Package store provides SQLite-backed snapshots of resolved element trees.
//
// A snapshot is one written tree, flattened to one row per element:
//   - snapshots: module name, tree fingerprint, logical sequence number
//   - elements: pre-order position, parent link, kind, the columns filter
//     selectors read, and the element's own attributes as JSON
//
// # Critical Patterns
//
// Content-addressed identity:
//   - snapshot IDs come from ir.SnapshotID (module name + tree fingerprint)
//   - writing the same tree twice is a no-op
//
// Deterministic query results:
//   - element queries order by id, the pre-order position, so results come
//     back in document order
//   - snapshot listings order by seq, then id COLLATE BINARY
//
// Filters run in SQL through package querysql; trees are rebuilt from the
// attrs column and parent links.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
