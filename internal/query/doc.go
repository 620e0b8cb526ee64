// Package query evaluates view configuration (sort rules, filter rules,
// free-text search) over a set of rows and their cells.
//
// The same functions run in two places with identical semantics:
//   - server-side, inside the store, as the authoritative ordering for
//     paged row listing and search
//   - client-side, inside the sync engine, as an instant preview over the
//     currently loaded page window
//
// Comparison semantics:
//   - NUMBER columns compare as parsed floats; absent or unparseable
//     values coerce to 0
//   - TEXT columns compare case-insensitively (x/text collation)
//   - filter rules AND together; sort rules apply in priority order with
//     stored row ord as the final tie-break
package query
