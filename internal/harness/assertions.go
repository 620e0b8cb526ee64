package harness

import (
	"fmt"
	"strings"
)

// Check validates a scenario's assertions against a run result.
// Every assertion is evaluated; the first failure is returned.
func Check(s *Scenario, res *Result) error {
	for i, a := range s.Assertions {
		if err := check(&a, res); err != nil {
			return fmt.Errorf("assertions[%d] %s: %w", i, a.Type, err)
		}
	}
	return nil
}

func check(a *Assertion, res *Result) error {
	switch a.Type {
	case AssertRowCount:
		if res.RowCount != a.Count {
			return fmt.Errorf("expected %d rows, got %d", a.Count, res.RowCount)
		}
		return nil

	case AssertCellEquals:
		col, err := columnIndex(res, a.Column)
		if err != nil {
			return err
		}
		if a.Row < 0 || a.Row >= len(res.Grid) {
			return fmt.Errorf("row %d out of range (%d rows)", a.Row, len(res.Grid))
		}
		if got := res.Grid[a.Row][col]; got != a.Value {
			return fmt.Errorf("cell (%d, %s): expected %q, got %q", a.Row, a.Column, a.Value, got)
		}
		return nil

	case AssertColumnValues:
		col, err := columnIndex(res, a.Column)
		if err != nil {
			return err
		}
		if len(res.Grid) != len(a.Values) {
			return fmt.Errorf("column %s: expected %d values, got %d rows", a.Column, len(a.Values), len(res.Grid))
		}
		for i, want := range a.Values {
			if got := res.Grid[i][col]; got != want {
				return fmt.Errorf("column %s row %d: expected %q, got %q", a.Column, i, want, got)
			}
		}
		return nil

	case AssertSearchCount:
		stats, ok := res.Searches[a.Query]
		if !ok {
			return fmt.Errorf("no search step ran for query %q", a.Query)
		}
		if stats.MatchedCells != a.Count {
			return fmt.Errorf("search %q: expected %d matched cells, got %d", a.Query, a.Count, stats.MatchedCells)
		}
		return nil

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func columnIndex(res *Result, name string) (int, error) {
	for i, c := range res.Columns {
		if strings.EqualFold(c, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", name)
}
