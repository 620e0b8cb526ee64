// Package engine is the client-side synchronization core for a grid.
//
// It keeps an in-memory cache of one table's rows, columns, and cells in
// evaluated (sorted/filtered) order, pages more rows in as the visible
// window approaches the loaded edge, and applies mutations optimistically:
// the cache is patched immediately under a temporary id, the request goes
// to the backend, and the response either reconciles the optimistic state
// onto the confirmed entity or rolls the cache back to its pre-mutation
// snapshot.
//
// Thread-safety model:
//   - Engine methods are safe from any goroutine (single mutex).
//   - The Navigator is driven from the UI event loop; its commit path
//     re-enters the Engine, so Engine methods never call the Navigator
//     while holding the lock.
//   - FetchController, Coordinator, and TableCache are not safe for
//     concurrent use on their own; the Engine serializes access.
package engine
