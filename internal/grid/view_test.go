package grid

import "testing"

func TestViewConfig_RoundTrip(t *testing.T) {
	cfg := ViewConfig{
		Sorts:   []SortRule{{ColumnID: "c1", Direction: SortAsc}},
		Filters: []FilterRule{{ColumnID: "c2", Operator: OpGreaterThan, Operand: "2"}},
		Hidden:  []string{"c3"},
	}

	data, err := MarshalConfig(cfg)
	if err != nil {
		t.Fatalf("MarshalConfig() failed: %v", err)
	}

	got, err := UnmarshalConfig(data)
	if err != nil {
		t.Fatalf("UnmarshalConfig() failed: %v", err)
	}

	if len(got.Sorts) != 1 || got.Sorts[0] != cfg.Sorts[0] {
		t.Errorf("sorts did not survive round trip: %+v", got.Sorts)
	}
	if len(got.Filters) != 1 || got.Filters[0] != cfg.Filters[0] {
		t.Errorf("filters did not survive round trip: %+v", got.Filters)
	}
	if len(got.Hidden) != 1 || got.Hidden[0] != "c3" {
		t.Errorf("hidden set did not survive round trip: %+v", got.Hidden)
	}
}

func TestUnmarshalConfig_EmptyIsZero(t *testing.T) {
	got, err := UnmarshalConfig("")
	if err != nil {
		t.Fatalf("UnmarshalConfig(\"\") failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("empty config string should yield zero config, got %+v", got)
	}
}

func TestViewConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ViewConfig
		wantErr bool
	}{
		{"zero", ViewConfig{}, false},
		{"good sort", ViewConfig{Sorts: []SortRule{{ColumnID: "c", Direction: SortDesc}}}, false},
		{"bad direction", ViewConfig{Sorts: []SortRule{{ColumnID: "c", Direction: "sideways"}}}, true},
		{"sort missing column", ViewConfig{Sorts: []SortRule{{Direction: SortAsc}}}, true},
		{"unary filter", ViewConfig{Filters: []FilterRule{{ColumnID: "c", Operator: OpIsEmpty}}}, false},
		{"binary filter without operand", ViewConfig{Filters: []FilterRule{{ColumnID: "c", Operator: OpContains}}}, true},
		{"unknown operator", ViewConfig{Filters: []FilterRule{{ColumnID: "c", Operator: "does not contain", Operand: "x"}}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestHiddenSet(t *testing.T) {
	cfg := ViewConfig{Hidden: []string{"a", "b"}}
	set := cfg.HiddenSet()
	if !set["a"] || !set["b"] || set["c"] {
		t.Errorf("HiddenSet() = %v", set)
	}
	if (ViewConfig{}).HiddenSet() != nil {
		t.Error("zero config should return nil set")
	}
}
