// Package grid defines the core entities of a gridwell table: Table, Column,
// Row, Cell, and View, plus the closed Value union used for cell payloads.
//
// Entities carry dense integer ordering:
//   - Row.Ord and Column.Ord are each a permutation of {0..n-1} within their
//     table after every completed mutation.
//   - At most one Cell exists per (Row, Column) pair; a missing Cell reads as
//     Empty{}.
//
// Identity is string-based. Permanent ids are UUIDv7. The client sync engine
// assigns temporary ids (prefix "tmp-") to entities that have not yet been
// confirmed by the store; IsTempID distinguishes the two ranges.
package grid
