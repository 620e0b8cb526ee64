package schema

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/gridwell/gridwell/internal/grid"
)

// Load reads a CUE schema file or directory and compiles it into table
// schemas, sorted by table key for deterministic apply order.
func Load(path string) ([]TableSchema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("schema path: %w", err)
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("no CUE instances in %s", path)
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
		}
		value = ctx.BuildInstance(inst)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	return Compile(value)
}

// Compile extracts every table declared under the top-level "table"
// struct of a CUE value.
func Compile(v cue.Value) ([]TableSchema, error) {
	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, fmt.Errorf("schema has no top-level \"table\" struct")
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}

	var tables []TableSchema
	for iter.Next() {
		t, err := compileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("schema declares no tables")
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Key < tables[j].Key })
	return tables, nil
}

func compileTable(key string, v cue.Value) (TableSchema, error) {
	t := TableSchema{Key: key, Name: key}

	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return t, fmt.Errorf("table %q: name: %w", key, err)
		}
		t.Name = name
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if colsVal.Exists() {
		colIter, err := colsVal.List()
		if err != nil {
			return t, fmt.Errorf("table %q: columns must be a list: %w", key, err)
		}
		for colIter.Next() {
			col, err := compileColumn(key, colIter.Value())
			if err != nil {
				return t, err
			}
			t.Columns = append(t.Columns, col)
		}
	}

	viewsVal := v.LookupPath(cue.ParsePath("views"))
	if viewsVal.Exists() {
		viewIter, err := viewsVal.List()
		if err != nil {
			return t, fmt.Errorf("table %q: views must be a list: %w", key, err)
		}
		for viewIter.Next() {
			view, err := compileView(key, viewIter.Value())
			if err != nil {
				return t, err
			}
			t.Views = append(t.Views, view)
		}
	}

	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func compileColumn(tableKey string, v cue.Value) (ColumnSchema, error) {
	col := ColumnSchema{Kind: grid.KindText}

	name, err := requiredString(v, "name")
	if err != nil {
		return col, fmt.Errorf("table %q: column: %w", tableKey, err)
	}
	col.Name = name

	if kindVal := v.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return col, fmt.Errorf("table %q: column %q: kind: %w", tableKey, name, err)
		}
		col.Kind = grid.ColumnKind(kind)
	}

	if widthVal := v.LookupPath(cue.ParsePath("width")); widthVal.Exists() {
		width, err := widthVal.Int64()
		if err != nil {
			return col, fmt.Errorf("table %q: column %q: width: %w", tableKey, name, err)
		}
		col.Width = int(width)
	}
	return col, nil
}

func compileView(tableKey string, v cue.Value) (ViewSchema, error) {
	view := ViewSchema{}

	name, err := requiredString(v, "name")
	if err != nil {
		return view, fmt.Errorf("table %q: view: %w", tableKey, err)
	}
	view.Name = name

	if defVal := v.LookupPath(cue.ParsePath("default")); defVal.Exists() {
		def, err := defVal.Bool()
		if err != nil {
			return view, fmt.Errorf("table %q: view %q: default: %w", tableKey, name, err)
		}
		view.Default = def
	}

	if sortsVal := v.LookupPath(cue.ParsePath("sorts")); sortsVal.Exists() {
		iter, err := sortsVal.List()
		if err != nil {
			return view, fmt.Errorf("table %q: view %q: sorts must be a list: %w", tableKey, name, err)
		}
		for iter.Next() {
			column, err := requiredString(iter.Value(), "column")
			if err != nil {
				return view, fmt.Errorf("table %q: view %q: sort: %w", tableKey, name, err)
			}
			rule := SortSchema{Column: column, Direction: grid.SortAsc}
			if dirVal := iter.Value().LookupPath(cue.ParsePath("direction")); dirVal.Exists() {
				dir, err := dirVal.String()
				if err != nil {
					return view, fmt.Errorf("table %q: view %q: direction: %w", tableKey, name, err)
				}
				rule.Direction = grid.SortDirection(dir)
			}
			view.Sorts = append(view.Sorts, rule)
		}
	}

	if filtersVal := v.LookupPath(cue.ParsePath("filters")); filtersVal.Exists() {
		iter, err := filtersVal.List()
		if err != nil {
			return view, fmt.Errorf("table %q: view %q: filters must be a list: %w", tableKey, name, err)
		}
		for iter.Next() {
			column, err := requiredString(iter.Value(), "column")
			if err != nil {
				return view, fmt.Errorf("table %q: view %q: filter: %w", tableKey, name, err)
			}
			operator, err := requiredString(iter.Value(), "operator")
			if err != nil {
				return view, fmt.Errorf("table %q: view %q: filter: %w", tableKey, name, err)
			}
			rule := FilterSchema{Column: column, Operator: grid.FilterOperator(operator)}
			if opVal := iter.Value().LookupPath(cue.ParsePath("operand")); opVal.Exists() {
				operand, err := opVal.String()
				if err != nil {
					return view, fmt.Errorf("table %q: view %q: operand: %w", tableKey, name, err)
				}
				rule.Operand = operand
			}
			view.Filters = append(view.Filters, rule)
		}
	}

	if hiddenVal := v.LookupPath(cue.ParsePath("hidden")); hiddenVal.Exists() {
		iter, err := hiddenVal.List()
		if err != nil {
			return view, fmt.Errorf("table %q: view %q: hidden must be a list: %w", tableKey, name, err)
		}
		for iter.Next() {
			h, err := iter.Value().String()
			if err != nil {
				return view, fmt.Errorf("table %q: view %q: hidden: %w", tableKey, name, err)
			}
			view.Hidden = append(view.Hidden, h)
		}
	}
	return view, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", fmt.Errorf("%s is required", field)
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return s, nil
}
