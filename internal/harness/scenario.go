package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridwell/gridwell/internal/grid"
)

// Scenario defines a conformance test scenario: a table shape, a flow
// of grid operations, and assertions over the final grid.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden
	// file name when the trace is compared via RunWithGolden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Columns declares the table's columns in display order.
	Columns []ColumnDef `yaml:"columns"`

	// Setup contains operations that establish initial state. They run
	// before the main flow and do not appear in the trace.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps contains the main flow. Each step appears in the trace.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final grid after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// ColumnDef declares one column of the scenario table.
type ColumnDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"` // TEXT when omitted
}

// Step is one grid operation. Op selects the operation; the remaining
// fields address it. Rows are addressed by their position in the
// evaluated (sorted/filtered) order at the time the step runs, columns
// by declared name.
type Step struct {
	Op string `yaml:"op"`

	// Row addresses ops that target a row (insert_after, insert_before,
	// delete_row, set_cell).
	Row int `yaml:"row,omitempty"`

	// Column and Value address set_cell. Value is parsed per the
	// column's kind.
	Column string `yaml:"column,omitempty"`
	Value  string `yaml:"value,omitempty"`

	// Count is the row count for populate.
	Count int `yaml:"count,omitempty"`

	// Query is the search term for search.
	Query string `yaml:"query,omitempty"`

	// Sorts, Filters and Hidden install view parameters for set_view.
	// All three empty resets the view to the bare table order.
	Sorts   []SortDef   `yaml:"sorts,omitempty"`
	Filters []FilterDef `yaml:"filters,omitempty"`
	Hidden  []string    `yaml:"hidden,omitempty"`
}

// SortDef is a by-name sort rule.
type SortDef struct {
	Column    string `yaml:"column"`
	Direction string `yaml:"direction,omitempty"` // asc when omitted
}

// FilterDef is a by-name filter rule.
type FilterDef struct {
	Column   string `yaml:"column"`
	Operator string `yaml:"operator"`
	Operand  string `yaml:"operand,omitempty"`
}

// Assertion validates the final grid or a recorded search.
type Assertion struct {
	// Type specifies the assertion:
	// - "row_count": the final grid holds exactly Count rows
	// - "cell_equals": the cell at (Row, Column) renders Value
	// - "column_values": Column's rendered values equal Values in order
	// - "search_count": the search for Query matched Count cells
	Type string `yaml:"type"`

	Row    int      `yaml:"row,omitempty"`
	Column string   `yaml:"column,omitempty"`
	Value  string   `yaml:"value,omitempty"`
	Values []string `yaml:"values,omitempty"`
	Count  int      `yaml:"count,omitempty"`
	Query  string   `yaml:"query,omitempty"`
}

// Step operation names.
const (
	OpAppendRow    = "append_row"
	OpInsertAfter  = "insert_after"
	OpInsertBefore = "insert_before"
	OpDeleteRow    = "delete_row"
	OpSetCell      = "set_cell"
	OpSetView      = "set_view"
	OpPopulate     = "populate"
	OpSearch       = "search"
)

// Assertion type names.
const (
	AssertRowCount     = "row_count"
	AssertCellEquals   = "cell_equals"
	AssertColumnValues = "column_values"
	AssertSearchCount  = "search_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// (typos) and missing required fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that
// every step and assertion references a declared column.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("columns list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Columns))
	for i, c := range s.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("columns[%d]: name is required", i)
		}
		if c.Kind != "" && !grid.ColumnKind(c.Kind).Valid() {
			return fmt.Errorf("columns[%d]: unknown kind %q", i, c.Kind)
		}
		names[strings.ToLower(c.Name)] = true
	}

	for i, step := range s.Setup {
		if err := validateStep(&step, names); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(&step, names); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(&a, names); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(st *Step, columns map[string]bool) error {
	switch st.Op {
	case OpAppendRow, OpInsertAfter, OpInsertBefore, OpDeleteRow:
		// Row defaults to 0, which is always a legal target.
	case OpSetCell:
		if st.Column == "" {
			return fmt.Errorf("column is required for %s", OpSetCell)
		}
		if !columns[strings.ToLower(st.Column)] {
			return fmt.Errorf("unknown column %q", st.Column)
		}
	case OpSetView:
		for _, rule := range st.Sorts {
			if !columns[strings.ToLower(rule.Column)] {
				return fmt.Errorf("unknown column %q", rule.Column)
			}
			if rule.Direction != "" && !grid.SortDirection(rule.Direction).Valid() {
				return fmt.Errorf("invalid direction %q", rule.Direction)
			}
		}
		for _, rule := range st.Filters {
			if !columns[strings.ToLower(rule.Column)] {
				return fmt.Errorf("unknown column %q", rule.Column)
			}
			if rule.Operator == "" {
				return fmt.Errorf("operator is required")
			}
		}
		for _, h := range st.Hidden {
			if !columns[strings.ToLower(h)] {
				return fmt.Errorf("unknown column %q", h)
			}
		}
	case OpPopulate:
		if st.Count <= 0 {
			return fmt.Errorf("count must be positive for %s", OpPopulate)
		}
	case OpSearch:
		if st.Query == "" {
			return fmt.Errorf("query is required for %s", OpSearch)
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

func validateAssertion(a *Assertion, columns map[string]bool) error {
	switch a.Type {
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for %s", AssertRowCount)
		}
	case AssertCellEquals, AssertColumnValues:
		if a.Column == "" {
			return fmt.Errorf("column is required for %s", a.Type)
		}
		if !columns[strings.ToLower(a.Column)] {
			return fmt.Errorf("unknown column %q", a.Column)
		}
	case AssertSearchCount:
		if a.Query == "" {
			return fmt.Errorf("query is required for %s", AssertSearchCount)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
