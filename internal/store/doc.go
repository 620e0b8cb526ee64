// Package store provides the SQLite-backed entity store for gridwell
// tables: Table, Column, Row, Cell, and View records.
//
// The store is the single system of record. All client-side optimism in
// internal/engine is provisional until reconciled against responses from
// this package.
//
// # Ordering invariants
//
// Row.ord and Column.ord are each a dense permutation of {0..n-1} within
// their table. Every mutation that shifts ordering (positioned insert,
// delete) performs the shift and the insert/delete inside one
// transaction, so readers never observe a gap or duplicate.
//
// # Cell uniqueness
//
// cells carries UNIQUE(row_id, column_id). UpsertCell resolves races
// between create and edit through ON CONFLICT DO UPDATE, so a losing
// writer updates the existing cell instead of surfacing an error.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: cascade deletes and orphan detection
//
// The connection pool is limited to a single connection; SQLite allows
// one writer and this avoids SQLITE_BUSY under interleaved mutations.
package store
