// Package harness runs declarative grid scenarios for conformance
// testing. A scenario is a YAML file that declares a table's columns,
// a setup phase, a sequence of grid operations, and assertions over the
// final grid. Running a scenario executes the operations through a real
// engine backed by a throwaway store and records a deterministic trace
// that can be compared against a golden file.
package harness
