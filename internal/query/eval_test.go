package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwell/gridwell/internal/grid"
)

// twoColumnTable builds the fixture from the design discussion:
// column A is TEXT, column B is NUMBER.
func twoColumnTable() []grid.Column {
	return []grid.Column{
		{ID: "colA", TableID: "t1", Name: "A", Kind: grid.KindText, Ord: 0},
		{ID: "colB", TableID: "t1", Name: "B", Kind: grid.KindNumber, Ord: 1},
	}
}

func rowWith(id string, ord int, a string, b grid.Value) RowData {
	return RowData{
		Row:   grid.Row{ID: id, TableID: "t1", Ord: ord},
		Cells: map[string]grid.Value{"colA": grid.Text(a), "colB": b},
	}
}

func TestSort_NumberAscending(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	rows := []RowData{
		rowWith("r1", 0, "x", grid.Number(5)),
		rowWith("r2", 1, "y", grid.Number(1)),
		rowWith("r3", 2, "z", grid.Number(3)),
	}

	ev.Sort(rows, []grid.SortRule{{ColumnID: "colB", Direction: grid.SortAsc}})

	got := []float64{
		grid.ValueNumber(rows[0].Value("colB")),
		grid.ValueNumber(rows[1].Value("colB")),
		grid.ValueNumber(rows[2].Value("colB")),
	}
	assert.Equal(t, []float64{1, 3, 5}, got)
}

func TestApply_SortThenFilter_SpecScenario(t *testing.T) {
	// B values [5,1,3]; sort B asc => [1,3,5]; filter B > 2 => [3,5].
	ev := NewEvaluator(twoColumnTable())
	rows := []RowData{
		rowWith("r1", 0, "x", grid.Number(5)),
		rowWith("r2", 1, "y", grid.Number(1)),
		rowWith("r3", 2, "z", grid.Number(3)),
	}

	out := ev.Apply(rows, grid.ViewConfig{
		Sorts:   []grid.SortRule{{ColumnID: "colB", Direction: grid.SortAsc}},
		Filters: []grid.FilterRule{{ColumnID: "colB", Operator: grid.OpGreaterThan, Operand: "2"}},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "r3", out[0].Row.ID)
	assert.Equal(t, "r1", out[1].Row.ID)
}

func TestSort_TextCaseInsensitive(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	rows := []RowData{
		rowWith("r1", 0, "banana", grid.Empty{}),
		rowWith("r2", 1, "Apple", grid.Empty{}),
		rowWith("r3", 2, "cherry", grid.Empty{}),
	}

	ev.Sort(rows, []grid.SortRule{{ColumnID: "colA", Direction: grid.SortAsc}})

	assert.Equal(t, "r2", rows[0].Row.ID, "Apple sorts before banana regardless of case")
	assert.Equal(t, "r1", rows[1].Row.ID)
	assert.Equal(t, "r3", rows[2].Row.ID)
}

func TestSort_MissingNumberTreatedAsZero(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	rows := []RowData{
		rowWith("r1", 0, "", grid.Number(-1)),
		{Row: grid.Row{ID: "r2", TableID: "t1", Ord: 1}, Cells: map[string]grid.Value{}},
		rowWith("r3", 2, "", grid.Number(2)),
	}

	ev.Sort(rows, []grid.SortRule{{ColumnID: "colB", Direction: grid.SortAsc}})

	assert.Equal(t, "r1", rows[0].Row.ID)
	assert.Equal(t, "r2", rows[1].Row.ID, "missing value coerces to 0, between -1 and 2")
	assert.Equal(t, "r3", rows[2].Row.ID)
}

func TestSort_TieBreakIsStoredOrd(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	// All B values tie; relative order must follow stored row ord even
	// when the input slice arrives shuffled.
	rows := []RowData{
		rowWith("r3", 2, "c", grid.Number(7)),
		rowWith("r1", 0, "a", grid.Number(7)),
		rowWith("r2", 1, "b", grid.Number(7)),
	}

	ev.Sort(rows, []grid.SortRule{{ColumnID: "colB", Direction: grid.SortDesc}})

	assert.Equal(t, "r1", rows[0].Row.ID)
	assert.Equal(t, "r2", rows[1].Row.ID)
	assert.Equal(t, "r3", rows[2].Row.ID)
}

func TestSort_Deterministic(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	mk := func() []RowData {
		return []RowData{
			rowWith("r1", 0, "m", grid.Number(2)),
			rowWith("r2", 1, "m", grid.Number(1)),
			rowWith("r3", 2, "m", grid.Number(2)),
		}
	}
	rules := []grid.SortRule{
		{ColumnID: "colA", Direction: grid.SortAsc},
		{ColumnID: "colB", Direction: grid.SortAsc},
	}

	first, second := mk(), mk()
	ev.Sort(first, rules)
	ev.Sort(second, rules)

	for i := range first {
		assert.Equal(t, first[i].Row.ID, second[i].Row.ID, "sorting twice must agree")
	}
	assert.Equal(t, "r2", first[0].Row.ID)
	assert.Equal(t, "r1", first[1].Row.ID, "tied rows keep stored order")
	assert.Equal(t, "r3", first[2].Row.ID)
}

func TestFilter_ANDSemantics(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	rows := []RowData{
		rowWith("r1", 0, "alpha", grid.Number(10)),
		rowWith("r2", 1, "alphabet", grid.Number(1)),
		rowWith("r3", 2, "beta", grid.Number(10)),
	}
	rules := []grid.FilterRule{
		{ColumnID: "colA", Operator: grid.OpContains, Operand: "ALPHA"},
		{ColumnID: "colB", Operator: grid.OpGreaterThan, Operand: "5"},
	}

	out := ev.Filter(rows, rules)

	require.Len(t, out, 1, "row must satisfy every rule independently")
	assert.Equal(t, "r1", out[0].Row.ID)
}

func TestFilter_Operators(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	row := rowWith("r1", 0, "Hello World", grid.Number(5))
	empty := RowData{Row: grid.Row{ID: "r2", Ord: 1}, Cells: map[string]grid.Value{}}

	cases := []struct {
		name string
		rule grid.FilterRule
		row  RowData
		want bool
	}{
		{"is_empty on empty", grid.FilterRule{ColumnID: "colA", Operator: grid.OpIsEmpty}, empty, true},
		{"is_empty on value", grid.FilterRule{ColumnID: "colA", Operator: grid.OpIsEmpty}, row, false},
		{"not_empty", grid.FilterRule{ColumnID: "colA", Operator: grid.OpNotEmpty}, row, true},
		{"contains folds case", grid.FilterRule{ColumnID: "colA", Operator: grid.OpContains, Operand: "hello"}, row, true},
		{"not_contains", grid.FilterRule{ColumnID: "colA", Operator: grid.OpNotContains, Operand: "xyz"}, row, true},
		{"equals text folds case", grid.FilterRule{ColumnID: "colA", Operator: grid.OpEquals, Operand: "hello world"}, row, true},
		{"equals number", grid.FilterRule{ColumnID: "colB", Operator: grid.OpEquals, Operand: "5"}, row, true},
		{"equals number mismatch", grid.FilterRule{ColumnID: "colB", Operator: grid.OpEquals, Operand: "6"}, row, false},
		{"greater_than", grid.FilterRule{ColumnID: "colB", Operator: grid.OpGreaterThan, Operand: "4"}, row, true},
		{"less_than", grid.FilterRule{ColumnID: "colB", Operator: grid.OpLessThan, Operand: "4"}, row, false},
		{"unparseable operand coerces to 0", grid.FilterRule{ColumnID: "colB", Operator: grid.OpGreaterThan, Operand: "banana"}, row, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ev.Filter([]RowData{tc.row}, []grid.FilterRule{tc.rule})
			assert.Equal(t, tc.want, len(got) == 1)
		})
	}
}

func TestFilter_NoRulesPassesAll(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	rows := []RowData{rowWith("r1", 0, "a", grid.Number(1))}
	out := ev.Filter(rows, nil)
	assert.Len(t, out, 1)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	ev := NewEvaluator(twoColumnTable())
	rows := []RowData{
		rowWith("r1", 0, "x", grid.Number(5)),
		rowWith("r2", 1, "y", grid.Number(1)),
	}

	_ = ev.Apply(rows, grid.ViewConfig{
		Sorts: []grid.SortRule{{ColumnID: "colB", Direction: grid.SortAsc}},
	})

	assert.Equal(t, "r1", rows[0].Row.ID, "input slice order must be preserved")
	assert.Equal(t, "r2", rows[1].Row.ID)
}
