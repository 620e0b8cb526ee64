package engine

import (
	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

// TableCache holds the loaded slice of one table in evaluated order:
// the ordered row list, an O(1) id index into it, column metadata, and
// cell values keyed (rowID, columnID). A (row, column) pair with no
// entry reads as grid.Empty{}.
//
// INVARIANT: index[rows[i].ID] == i for every loaded row. Every mutation
// that reorders the slice re-establishes this before returning.
type TableCache struct {
	columns []grid.Column
	rows    []grid.Row
	index   map[string]int
	cells   map[string]map[string]grid.Value
	total   int
}

// NewTableCache returns an empty cache.
func NewTableCache() *TableCache {
	return &TableCache{
		index: make(map[string]int),
		cells: make(map[string]map[string]grid.Value),
	}
}

// Reset replaces the cache contents with the given first page.
func (c *TableCache) Reset(page store.Page) {
	c.columns = append([]grid.Column(nil), page.Columns...)
	c.rows = append([]grid.Row(nil), page.Rows...)
	c.index = make(map[string]int, len(c.rows))
	for i, r := range c.rows {
		c.index[r.ID] = i
	}
	c.cells = make(map[string]map[string]grid.Value)
	for _, cell := range page.Cells {
		c.setCell(cell.RowID, cell.ColumnID, cell.Value)
	}
	c.total = page.TotalCount
}

// Append adds a follow-on page to the end of the loaded slice. Rows
// already present (overlap from a concurrent local insert) are skipped.
func (c *TableCache) Append(page store.Page) {
	for _, r := range page.Rows {
		if _, ok := c.index[r.ID]; ok {
			continue
		}
		c.index[r.ID] = len(c.rows)
		c.rows = append(c.rows, r)
	}
	for _, cell := range page.Cells {
		c.setCell(cell.RowID, cell.ColumnID, cell.Value)
	}
	c.total = page.TotalCount
}

// Len returns the number of loaded rows.
func (c *TableCache) Len() int { return len(c.rows) }

// Total returns the server's row count for the current parameters,
// which may exceed Len while pages remain unloaded.
func (c *TableCache) Total() int { return c.total }

// Columns returns the column metadata in display order.
func (c *TableCache) Columns() []grid.Column { return c.columns }

// SetColumns replaces the column metadata.
func (c *TableCache) SetColumns(cols []grid.Column) {
	c.columns = append([]grid.Column(nil), cols...)
}

// ColumnByID returns a column's metadata by id.
func (c *TableCache) ColumnByID(id string) (grid.Column, bool) {
	for _, col := range c.columns {
		if col.ID == id {
			return col, true
		}
	}
	return grid.Column{}, false
}

// PatchColumn replaces a column's metadata in place by id.
func (c *TableCache) PatchColumn(col grid.Column) bool {
	for i := range c.columns {
		if c.columns[i].ID == col.ID {
			c.columns[i] = col
			return true
		}
	}
	return false
}

// RemoveColumn drops a column and every cached value under it.
func (c *TableCache) RemoveColumn(columnID string) bool {
	found := false
	kept := c.columns[:0]
	for _, col := range c.columns {
		if col.ID == columnID {
			found = true
			continue
		}
		kept = append(kept, col)
	}
	if !found {
		return false
	}
	c.columns = kept
	for _, vals := range c.cells {
		delete(vals, columnID)
	}
	return true
}

// RekeyColumn atomically replaces a temporary column id with the
// confirmed column: the metadata entry and every cached cell value
// keyed under the temp id move together.
func (c *TableCache) RekeyColumn(tempID string, confirmed grid.Column) bool {
	found := false
	for i := range c.columns {
		if c.columns[i].ID == tempID {
			c.columns[i] = confirmed
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for _, vals := range c.cells {
		if v, ok := vals[tempID]; ok {
			delete(vals, tempID)
			vals[confirmed.ID] = v
		}
	}
	return true
}

// Rows returns the loaded rows in evaluated order. Callers must not
// mutate the returned slice.
func (c *TableCache) Rows() []grid.Row { return c.rows }

// RowAt returns the row at a position in the loaded slice.
func (c *TableCache) RowAt(i int) (grid.Row, bool) {
	if i < 0 || i >= len(c.rows) {
		return grid.Row{}, false
	}
	return c.rows[i], true
}

// PositionOf returns a loaded row's position by id.
func (c *TableCache) PositionOf(rowID string) (int, bool) {
	i, ok := c.index[rowID]
	return i, ok
}

// Value returns the cached value for a cell, Empty if absent.
func (c *TableCache) Value(rowID, columnID string) grid.Value {
	if row, ok := c.cells[rowID]; ok {
		if v, ok := row[columnID]; ok && v != nil {
			return v
		}
	}
	return grid.Empty{}
}

// SetValue stores a cell value.
func (c *TableCache) SetValue(rowID, columnID string, v grid.Value) {
	c.setCell(rowID, columnID, v)
}

func (c *TableCache) setCell(rowID, columnID string, v grid.Value) {
	row, ok := c.cells[rowID]
	if !ok {
		row = make(map[string]grid.Value)
		c.cells[rowID] = row
	}
	if v == nil {
		v = grid.Empty{}
	}
	row[columnID] = v
}

// InsertRow places a row at a position in the loaded slice, shifting
// later rows down, and counts it toward the total.
func (c *TableCache) InsertRow(pos int, row grid.Row) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(c.rows) {
		pos = len(c.rows)
	}
	c.rows = append(c.rows, grid.Row{})
	copy(c.rows[pos+1:], c.rows[pos:])
	c.rows[pos] = row
	c.reindexFrom(pos)
	c.total++
}

// RemoveRow drops a row, its cells, and its index entry.
func (c *TableCache) RemoveRow(rowID string) bool {
	pos, ok := c.index[rowID]
	if !ok {
		return false
	}
	c.rows = append(c.rows[:pos], c.rows[pos+1:]...)
	delete(c.index, rowID)
	delete(c.cells, rowID)
	c.reindexFrom(pos)
	c.total--
	return true
}

// Rekey atomically replaces a temporary row id with the confirmed row
// in a single pass: the row slice entry, the id index, and the cell map
// key all move together so no observer sees a half-renamed row.
func (c *TableCache) Rekey(tempID string, confirmed grid.Row) bool {
	pos, ok := c.index[tempID]
	if !ok {
		return false
	}
	c.rows[pos] = confirmed
	delete(c.index, tempID)
	c.index[confirmed.ID] = pos
	if vals, ok := c.cells[tempID]; ok {
		delete(c.cells, tempID)
		c.cells[confirmed.ID] = vals
	}
	return true
}

// Window returns the rows covering [start, end) expanded by overscan on
// both sides, clamped to the loaded slice.
func (c *TableCache) Window(start, end, overscan int) []grid.Row {
	start -= overscan
	end += overscan
	if start < 0 {
		start = 0
	}
	if end > len(c.rows) {
		end = len(c.rows)
	}
	if start >= end {
		return nil
	}
	return c.rows[start:end]
}

func (c *TableCache) reindexFrom(pos int) {
	for i := pos; i < len(c.rows); i++ {
		c.index[c.rows[i].ID] = i
	}
}

// CacheSnapshot is a deep copy of the cache taken before an optimistic
// patch. Restore puts the cache back exactly as it was.
type CacheSnapshot struct {
	columns []grid.Column
	rows    []grid.Row
	cells   map[string]map[string]grid.Value
	total   int
}

// Snapshot captures the current cache state.
func (c *TableCache) Snapshot() *CacheSnapshot {
	snap := &CacheSnapshot{
		columns: append([]grid.Column(nil), c.columns...),
		rows:    append([]grid.Row(nil), c.rows...),
		cells:   make(map[string]map[string]grid.Value, len(c.cells)),
		total:   c.total,
	}
	for rowID, vals := range c.cells {
		cp := make(map[string]grid.Value, len(vals))
		for colID, v := range vals {
			cp[colID] = v
		}
		snap.cells[rowID] = cp
	}
	return snap
}

// Restore rewinds the cache to a snapshot.
func (c *TableCache) Restore(snap *CacheSnapshot) {
	c.columns = append([]grid.Column(nil), snap.columns...)
	c.rows = append([]grid.Row(nil), snap.rows...)
	c.index = make(map[string]int, len(c.rows))
	for i, r := range c.rows {
		c.index[r.ID] = i
	}
	c.cells = make(map[string]map[string]grid.Value, len(snap.cells))
	for rowID, vals := range snap.cells {
		cp := make(map[string]grid.Value, len(vals))
		for colID, v := range vals {
			cp[colID] = v
		}
		c.cells[rowID] = cp
	}
	c.total = snap.total
}
