package query

import (
	"sort"

	"github.com/gridwell/gridwell/internal/grid"
)

// FieldMatch records a column whose name contains the search query.
type FieldMatch struct {
	ColumnID string `json:"column_id"`
	Name     string `json:"name"`
	ColOrd   int    `json:"col_ord"`
}

// CellMatch records a cell whose textual value contains the search query.
// RowPos is the row's position in the evaluated (sorted/filtered)
// sequence the search ran over; ColOrd is the column's stored ord. The
// pair gives stable next/previous navigation between matches.
type CellMatch struct {
	RowID    string `json:"row_id"`
	ColumnID string `json:"column_id"`
	RowPos   int    `json:"row_pos"`
	ColOrd   int    `json:"col_ord"`
	Text     string `json:"text"`
}

// SearchStats aggregates match counts for the search summary line.
type SearchStats struct {
	MatchedFields int `json:"matched_fields"`
	MatchedCells  int `json:"matched_cells"`
	MatchedRows   int `json:"matched_rows"`
}

// SearchResult holds both match classes plus aggregate counts.
type SearchResult struct {
	Fields []FieldMatch `json:"fields"`
	Cells  []CellMatch  `json:"cells"`
	Stats  SearchStats  `json:"stats"`
}

// Search scans column names and cell values for a case-insensitive
// substring match. Rows should already be in evaluated order (Apply);
// cell matches come back ordered by (RowPos, ColOrd) so a caller can
// step through them deterministically. An empty query matches nothing.
func Search(columns []grid.Column, rows []RowData, q string) SearchResult {
	res := SearchResult{Fields: []FieldMatch{}, Cells: []CellMatch{}}
	if q == "" {
		return res
	}

	cols := make([]grid.Column, len(columns))
	copy(cols, columns)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Ord < cols[j].Ord })

	for _, c := range cols {
		if containsFold(c.Name, q) {
			res.Fields = append(res.Fields, FieldMatch{ColumnID: c.ID, Name: c.Name, ColOrd: c.Ord})
		}
	}

	rowSeen := make(map[string]bool)
	for pos, r := range rows {
		for _, c := range cols {
			text := grid.ValueString(r.Value(c.ID))
			if text == "" || !containsFold(text, q) {
				continue
			}
			res.Cells = append(res.Cells, CellMatch{
				RowID:    r.Row.ID,
				ColumnID: c.ID,
				RowPos:   pos,
				ColOrd:   c.Ord,
				Text:     text,
			})
			rowSeen[r.Row.ID] = true
		}
	}

	res.Stats = SearchStats{
		MatchedFields: len(res.Fields),
		MatchedCells:  len(res.Cells),
		MatchedRows:   len(rowSeen),
	}
	return res
}
