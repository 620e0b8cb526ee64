package query

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/gridwell/gridwell/internal/grid"
)

// RowData pairs a row with its cell values keyed by column id.
// A column absent from Cells reads as grid.Empty{}.
type RowData struct {
	Row   grid.Row
	Cells map[string]grid.Value
}

// Value returns the row's value for a column, Empty if missing.
func (r RowData) Value(columnID string) grid.Value {
	if v, ok := r.Cells[columnID]; ok && v != nil {
		return v
	}
	return grid.Empty{}
}

// Evaluator applies a view configuration to row sets. It carries the
// column kind map and a case-insensitive collator.
//
// Not safe for concurrent use: the underlying collator buffers state.
// Construct one per evaluation; construction is cheap.
type Evaluator struct {
	kinds    map[string]grid.ColumnKind
	collator *collate.Collator
}

// NewEvaluator builds an evaluator over the given columns.
func NewEvaluator(columns []grid.Column) *Evaluator {
	kinds := make(map[string]grid.ColumnKind, len(columns))
	for _, c := range columns {
		kinds[c.ID] = c.Kind
	}
	return &Evaluator{
		kinds:    kinds,
		collator: collate.New(language.Und, collate.IgnoreCase),
	}
}

// Apply filters then sorts rows per the config, returning a new slice.
// The input slice is never mutated.
func (e *Evaluator) Apply(rows []RowData, cfg grid.ViewConfig) []RowData {
	out := e.Filter(rows, cfg.Filters)
	e.Sort(out, cfg.Sorts)
	return out
}

// Sort orders rows in place by the sort rules in priority order.
// Ties across all rules fall back to stored row ord, so the result is
// stable with respect to the table's own ordering.
func (e *Evaluator) Sort(rows []RowData, rules []grid.SortRule) {
	if len(rules) == 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Row.Ord < rows[j].Row.Ord
		})
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, rule := range rules {
			c := e.compareColumn(rows[i], rows[j], rule.ColumnID)
			if c == 0 {
				continue
			}
			if rule.Direction == grid.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return rows[i].Row.Ord < rows[j].Row.Ord
	})
}

// compareColumn compares two rows' values for one column using the
// column's declared kind.
func (e *Evaluator) compareColumn(a, b RowData, columnID string) int {
	av, bv := a.Value(columnID), b.Value(columnID)
	if e.kinds[columnID] == grid.KindNumber {
		an, bn := grid.ValueNumber(av), grid.ValueNumber(bv)
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return e.collator.CompareString(grid.ValueString(av), grid.ValueString(bv))
}

// Filter returns the rows satisfying every rule (logical AND).
// No rules means every row passes. The input slice is never mutated.
func (e *Evaluator) Filter(rows []RowData, rules []grid.FilterRule) []RowData {
	out := make([]RowData, 0, len(rows))
	for _, r := range rows {
		if e.matchesAll(r, rules) {
			out = append(out, r)
		}
	}
	return out
}

func (e *Evaluator) matchesAll(r RowData, rules []grid.FilterRule) bool {
	for _, rule := range rules {
		if !e.matches(r, rule) {
			return false
		}
	}
	return true
}

// matches evaluates one filter rule against one row.
func (e *Evaluator) matches(r RowData, rule grid.FilterRule) bool {
	v := r.Value(rule.ColumnID)
	switch rule.Operator {
	case grid.OpIsEmpty:
		return grid.IsEmptyValue(v)
	case grid.OpNotEmpty:
		return !grid.IsEmptyValue(v)
	case grid.OpContains:
		return containsFold(grid.ValueString(v), rule.Operand)
	case grid.OpNotContains:
		return !containsFold(grid.ValueString(v), rule.Operand)
	case grid.OpEquals:
		if e.kinds[rule.ColumnID] == grid.KindNumber {
			return grid.ValueNumber(v) == parseOperand(rule.Operand)
		}
		return e.collator.CompareString(grid.ValueString(v), rule.Operand) == 0
	case grid.OpGreaterThan:
		return grid.ValueNumber(v) > parseOperand(rule.Operand)
	case grid.OpLessThan:
		return grid.ValueNumber(v) < parseOperand(rule.Operand)
	default:
		// Unknown operators exclude the row rather than silently pass.
		return false
	}
}

// parseOperand parses a comparison operand as a number, 0 if unparseable.
// Mirrors grid.ValueNumber's coercion so both operands degrade the same way.
func parseOperand(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// containsFold is a case-insensitive substring test.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
