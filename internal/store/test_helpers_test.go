package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gridwell/gridwell/internal/grid"
)

// newTestStore opens a store on a throwaway database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "grid.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestTable creates a table with the named (name, kind) columns.
func newTestTable(t *testing.T, s *Store, columns ...[2]string) (grid.Table, []grid.Column) {
	t.Helper()
	ctx := context.Background()

	table, err := s.CreateTable(ctx, "fixtures")
	if err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}

	var cols []grid.Column
	for _, c := range columns {
		col, err := s.CreateColumn(ctx, table.ID, c[0], grid.ColumnKind(c[1]))
		if err != nil {
			t.Fatalf("CreateColumn(%q) failed: %v", c[0], err)
		}
		cols = append(cols, col)
	}
	return table, cols
}

// assertDenseOrds fails unless the ord values in the named table
// ("rows" or "columns") for tableID are exactly {0..n-1}.
func assertDenseOrds(t *testing.T, s *Store, entity, tableID string) {
	t.Helper()

	rows, err := s.db.Query(
		`SELECT ord FROM `+entity+` WHERE table_id = ? ORDER BY ord ASC`, tableID)
	if err != nil {
		t.Fatalf("query %s ords: %v", entity, err)
	}
	defer rows.Close()

	want := 0
	for rows.Next() {
		var ord int
		if err := rows.Scan(&ord); err != nil {
			t.Fatalf("scan ord: %v", err)
		}
		if ord != want {
			t.Fatalf("%s ords not dense: got %d at position %d", entity, ord, want)
		}
		want++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate ords: %v", err)
	}
}

// cellCount returns the number of cells belonging to a table.
func cellCount(t *testing.T, s *Store, tableID string) int {
	t.Helper()
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM cells c JOIN rows r ON c.row_id = r.id
		WHERE r.table_id = ?
	`, tableID).Scan(&n)
	if err != nil {
		t.Fatalf("count cells: %v", err)
	}
	return n
}
