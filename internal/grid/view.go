package grid

import (
	"encoding/json"
	"fmt"
)

// SortDirection orders a sort rule.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Valid reports whether the direction is asc or desc.
func (d SortDirection) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// FilterOperator is the single operator vocabulary used everywhere.
// The surveyed subsystems drifted between spellings ("does not contain"
// vs "not_contains"); this package is the one source of truth.
type FilterOperator string

const (
	OpIsEmpty     FilterOperator = "is_empty"
	OpNotEmpty    FilterOperator = "not_empty"
	OpContains    FilterOperator = "contains"
	OpNotContains FilterOperator = "not_contains"
	OpEquals      FilterOperator = "equals"
	OpGreaterThan FilterOperator = "greater_than"
	OpLessThan    FilterOperator = "less_than"
)

// Valid reports whether the operator is part of the vocabulary.
func (op FilterOperator) Valid() bool {
	switch op {
	case OpIsEmpty, OpNotEmpty, OpContains, OpNotContains,
		OpEquals, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// NeedsOperand reports whether the operator compares against a value.
// is_empty/not_empty are unary; everything else is binary.
func (op FilterOperator) NeedsOperand() bool {
	return op != OpIsEmpty && op != OpNotEmpty
}

// SortRule sorts by one column. Rules apply in listed priority order;
// ties fall through to the next rule and finally to stored row Ord.
type SortRule struct {
	ColumnID  string        `json:"column_id"`
	Direction SortDirection `json:"direction"`
}

// FilterRule keeps a row only if the named column's value satisfies the
// operator. A row passes a view's filter iff it passes every rule.
type FilterRule struct {
	ColumnID string         `json:"column_id"`
	Operator FilterOperator `json:"operator"`
	Operand  string         `json:"operand,omitempty"`
}

// ViewConfig is the persisted configuration of a View: sort rules,
// filter rules, and the set of hidden column ids. The zero value is a
// plain unsorted, unfiltered view with every column visible.
type ViewConfig struct {
	Sorts   []SortRule   `json:"sorts,omitempty"`
	Filters []FilterRule `json:"filters,omitempty"`
	Hidden  []string     `json:"hidden,omitempty"`
}

// IsZero reports whether the config carries no sort, filter, or hidden
// state. Zero configs skip evaluator work on the hot fetch path.
func (c ViewConfig) IsZero() bool {
	return len(c.Sorts) == 0 && len(c.Filters) == 0 && len(c.Hidden) == 0
}

// HiddenSet returns the hidden column ids as a set for O(1) lookups.
func (c ViewConfig) HiddenSet() map[string]bool {
	if len(c.Hidden) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.Hidden))
	for _, id := range c.Hidden {
		set[id] = true
	}
	return set
}

// Validate checks rule well-formedness: known directions, known
// operators, operands present exactly when the operator needs one.
func (c ViewConfig) Validate() error {
	for i, s := range c.Sorts {
		if s.ColumnID == "" {
			return fmt.Errorf("sort rule %d: missing column id", i)
		}
		if !s.Direction.Valid() {
			return fmt.Errorf("sort rule %d: invalid direction %q", i, s.Direction)
		}
	}
	for i, f := range c.Filters {
		if f.ColumnID == "" {
			return fmt.Errorf("filter rule %d: missing column id", i)
		}
		if !f.Operator.Valid() {
			return fmt.Errorf("filter rule %d: invalid operator %q", i, f.Operator)
		}
		if f.Operator.NeedsOperand() && f.Operand == "" {
			return fmt.Errorf("filter rule %d: operator %q requires an operand", i, f.Operator)
		}
	}
	return nil
}

// MarshalConfig serializes a ViewConfig for the store's config column.
func MarshalConfig(c ViewConfig) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal view config: %w", err)
	}
	return string(data), nil
}

// UnmarshalConfig parses a stored config column. Empty input yields the
// zero config.
func UnmarshalConfig(data string) (ViewConfig, error) {
	var c ViewConfig
	if data == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return ViewConfig{}, fmt.Errorf("unmarshal view config: %w", err)
	}
	return c, nil
}

// View is a named, persisted sort/filter/hidden-column configuration.
// Exactly one View per table is flagged default; a table with zero
// views lazily gets one. The default view cannot be deleted.
type View struct {
	ID        string     `json:"id"`
	TableID   string     `json:"table_id"`
	Name      string     `json:"name"`
	Config    ViewConfig `json:"config"`
	IsDefault bool       `json:"is_default"`
}
