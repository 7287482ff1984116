// Package store provides the SQLite-backed dispatch journal.
//
// The journal is append-only and holds two kinds of records:
//   - Firings: every trigger signal, with the outcome of its constraint gate
//   - Performs: every call made to the execution sink, linked to the firing
//     that caused it
//
// All ordering uses the seq column, which the engine stamps from its logical
// clock. Queries order by seq ASC, id ASC COLLATE BINARY so that reads are
// identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
