package store

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/query"
)

// Page is one window of a table's evaluated row sequence.
type Page struct {
	Rows       []grid.Row    `json:"rows"`
	Columns    []grid.Column `json:"columns"`
	Cells      []grid.Cell   `json:"cells"`
	NextCursor string        `json:"next_cursor,omitempty"`
	TotalCount int           `json:"total_count"`
}

// DefaultPageSize is used when a caller passes pageSize <= 0.
const DefaultPageSize = 100

// cursorPayload is the decoded form of an opaque page cursor. The
// fingerprint binds the cursor to the (table, view config) pair it was
// issued for: a cursor from a stale sort/filter/search parameter set is
// rejected instead of silently returning rows in the wrong order.
type cursorPayload struct {
	Offset      int    `json:"offset"`
	Fingerprint string `json:"fp"`
}

// ListRows returns one page of the table's rows under the given view
// configuration. The authoritative ordering and filtering run here,
// through the same evaluator the client uses for previews.
//
// cursor is "" for the first page. The returned NextCursor is "" when
// the sequence is exhausted.
func (s *Store) ListRows(ctx context.Context, tableID, cursor string, pageSize int, cfg grid.ViewConfig) (Page, error) {
	if err := cfg.Validate(); err != nil {
		return Page{}, validation("view", "", "list rows", err.Error())
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	fp := paramsFingerprint(tableID, cfg)
	offset := 0
	if cursor != "" {
		payload, err := decodeCursor(cursor)
		if err != nil {
			return Page{}, validation("table", tableID, "list rows", fmt.Sprintf("bad cursor: %v", err))
		}
		if payload.Fingerprint != fp {
			return Page{}, validation("table", tableID, "list rows", "cursor does not match current sort/filter parameters")
		}
		offset = payload.Offset
	}

	data, columns, err := s.loadRowData(ctx, tableID)
	if err != nil {
		return Page{}, err
	}

	ev := query.NewEvaluator(columns)
	evaluated := ev.Apply(data, cfg)

	total := len(evaluated)
	end := offset + pageSize
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}
	window := evaluated[offset:end]

	page := Page{
		Rows:       make([]grid.Row, 0, len(window)),
		Columns:    columns,
		Cells:      []grid.Cell{},
		TotalCount: total,
	}
	for _, rd := range window {
		page.Rows = append(page.Rows, rd.Row)
		for colID, v := range rd.Cells {
			page.Cells = append(page.Cells, grid.Cell{
				RowID:    rd.Row.ID,
				ColumnID: colID,
				Value:    v,
			})
		}
	}

	if end < total {
		page.NextCursor = encodeCursor(cursorPayload{Offset: end, Fingerprint: fp})
	}

	s.logger.Debug("rows listed",
		"table_id", tableID, "offset", offset, "returned", len(page.Rows), "total", total)
	return page, nil
}

// SearchTable runs a free-text search over the evaluated row sequence.
// Field-name matches and cell matches come back with positional metadata
// so a client can step between matches in a stable order.
func (s *Store) SearchTable(ctx context.Context, tableID, q string, cfg grid.ViewConfig) (query.SearchResult, error) {
	if err := cfg.Validate(); err != nil {
		return query.SearchResult{}, validation("view", "", "search", err.Error())
	}

	data, columns, err := s.loadRowData(ctx, tableID)
	if err != nil {
		return query.SearchResult{}, err
	}

	ev := query.NewEvaluator(columns)
	evaluated := ev.Apply(data, cfg)

	res := query.Search(columns, evaluated, q)
	s.logger.Debug("table searched",
		"table_id", tableID, "query", q,
		"matched_cells", res.Stats.MatchedCells, "matched_rows", res.Stats.MatchedRows)
	return res, nil
}

// loadRowData loads every row of a table with its cells, in stored ord
// order, plus the table's columns.
func (s *Store) loadRowData(ctx context.Context, tableID string) ([]query.RowData, []grid.Column, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, nil, err
	}

	columns, err := s.ListColumns(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}

	rowRows, err := s.db.QueryContext(ctx, `
		SELECT id, table_id, ord FROM rows
		WHERE table_id = ?
		ORDER BY ord ASC, id COLLATE BINARY ASC
	`, tableID)
	if err != nil {
		return nil, nil, fmt.Errorf("load rows: %w", err)
	}
	defer rowRows.Close()

	var data []query.RowData
	index := map[string]int{}
	for rowRows.Next() {
		var r grid.Row
		if err := rowRows.Scan(&r.ID, &r.TableID, &r.Ord); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		index[r.ID] = len(data)
		data = append(data, query.RowData{Row: r, Cells: map[string]grid.Value{}})
	}
	if err := rowRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}

	cellRows, err := s.db.QueryContext(ctx, `
		SELECT c.row_id, c.column_id, c.value
		FROM cells c JOIN rows r ON c.row_id = r.id
		WHERE r.table_id = ?
	`, tableID)
	if err != nil {
		return nil, nil, fmt.Errorf("load cells: %w", err)
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var rowID, columnID, raw string
		if err := cellRows.Scan(&rowID, &columnID, &raw); err != nil {
			return nil, nil, fmt.Errorf("scan cell: %w", err)
		}
		v, err := grid.UnmarshalValue([]byte(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("decode cell value: %w", err)
		}
		if i, ok := index[rowID]; ok {
			data[i].Cells[columnID] = v
		}
	}
	if err := cellRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate cells: %w", err)
	}

	return data, columns, nil
}

// paramsFingerprint hashes the (table, view config) pair a cursor was
// issued under.
func paramsFingerprint(tableID string, cfg grid.ViewConfig) string {
	blob, _ := json.Marshal(cfg)
	sum := sha256.Sum256(append([]byte(tableID+"|"), blob...))
	return hex.EncodeToString(sum[:8])
}

func encodeCursor(p cursorPayload) string {
	blob, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(blob)
}

func decodeCursor(cursor string) (cursorPayload, error) {
	blob, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return cursorPayload{}, fmt.Errorf("decode: %w", err)
	}
	var p cursorPayload
	if err := json.Unmarshal(blob, &p); err != nil {
		return cursorPayload{}, fmt.Errorf("unmarshal: %w", err)
	}
	if p.Offset < 0 {
		return cursorPayload{}, fmt.Errorf("negative offset")
	}
	return p, nil
}
