package schema

import (
	"fmt"
	"strings"

	"github.com/gridwell/gridwell/internal/grid"
)

// TableSchema is one declared table: display name, typed columns in
// order, and optional named views.
type TableSchema struct {
	// Key is the table's label in the schema file, used for messages.
	Key     string
	Name    string
	Columns []ColumnSchema
	Views   []ViewSchema
}

// ColumnSchema declares one column. Width 0 means the default.
type ColumnSchema struct {
	Name  string
	Kind  grid.ColumnKind
	Width int
}

// ViewSchema declares a named view. Rules reference columns by name.
type ViewSchema struct {
	Name    string
	Default bool
	Sorts   []SortSchema
	Filters []FilterSchema
	Hidden  []string
}

// SortSchema is a by-name sort rule.
type SortSchema struct {
	Column    string
	Direction grid.SortDirection
}

// FilterSchema is a by-name filter rule.
type FilterSchema struct {
	Column   string
	Operator grid.FilterOperator
	Operand  string
}

// Validate checks a table schema for internal consistency: a non-empty
// name, at least one column, unique column names (case-insensitive),
// known kinds, and view rules that reference declared columns.
func (t *TableSchema) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table %q: name is required", t.Key)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q: at least one column is required", t.Key)
	}

	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("table %q: column %d: name is required", t.Key, i)
		}
		folded := strings.ToLower(c.Name)
		if seen[folded] {
			return fmt.Errorf("table %q: duplicate column name %q", t.Key, c.Name)
		}
		seen[folded] = true
		if !c.Kind.Valid() {
			return fmt.Errorf("table %q: column %q: unknown kind %q", t.Key, c.Name, c.Kind)
		}
		if c.Width < 0 {
			return fmt.Errorf("table %q: column %q: negative width", t.Key, c.Name)
		}
	}

	defaults := 0
	for _, v := range t.Views {
		if err := t.validateView(v, seen); err != nil {
			return err
		}
		if v.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("table %q: more than one default view", t.Key)
	}
	return nil
}

func (t *TableSchema) validateView(v ViewSchema, columns map[string]bool) error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("table %q: view name is required", t.Key)
	}
	for _, s := range v.Sorts {
		if !columns[strings.ToLower(s.Column)] {
			return fmt.Errorf("table %q: view %q: sort references unknown column %q", t.Key, v.Name, s.Column)
		}
		if !s.Direction.Valid() {
			return fmt.Errorf("table %q: view %q: invalid direction %q", t.Key, v.Name, s.Direction)
		}
	}
	for _, f := range v.Filters {
		if !columns[strings.ToLower(f.Column)] {
			return fmt.Errorf("table %q: view %q: filter references unknown column %q", t.Key, v.Name, f.Column)
		}
		if !f.Operator.Valid() {
			return fmt.Errorf("table %q: view %q: invalid operator %q", t.Key, v.Name, f.Operator)
		}
		if f.Operator.NeedsOperand() && f.Operand == "" {
			return fmt.Errorf("table %q: view %q: operator %q requires an operand", t.Key, v.Name, f.Operator)
		}
	}
	for _, h := range v.Hidden {
		if !columns[strings.ToLower(h)] {
			return fmt.Errorf("table %q: view %q: hidden references unknown column %q", t.Key, v.Name, h)
		}
	}
	return nil
}
