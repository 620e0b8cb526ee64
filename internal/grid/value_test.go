package grid

import "testing"

func TestMarshalValue_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    Value
	}{
		{"text", Text("hello")},
		{"empty text", Text("")},
		{"number", Number(42)},
		{"fractional", Number(3.5)},
		{"negative", Number(-17)},
		{"empty", Empty{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := MarshalValue(tc.v)
			if err != nil {
				t.Fatalf("MarshalValue() failed: %v", err)
			}
			got, err := UnmarshalValue(data)
			if err != nil {
				t.Fatalf("UnmarshalValue() failed: %v", err)
			}
			// Text("") normalizes to itself; Empty stays Empty.
			if !ValueEqual(got, tc.v) {
				t.Errorf("round trip: got %#v, want %#v", got, tc.v)
			}
		})
	}
}

func TestMarshalValue_NilIsEmpty(t *testing.T) {
	data, err := MarshalValue(nil)
	if err != nil {
		t.Fatalf("MarshalValue(nil) failed: %v", err)
	}
	got, err := UnmarshalValue(data)
	if err != nil {
		t.Fatalf("UnmarshalValue() failed: %v", err)
	}
	if _, ok := got.(Empty); !ok {
		t.Errorf("nil should marshal as Empty, got %#v", got)
	}
}

func TestUnmarshalValue_UnknownKind(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"kind":"blob"}`))
	if err == nil {
		t.Error("expected error for unknown kind, got nil")
	}
}

func TestUnmarshalValue_NumberMissingPayload(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"kind":"number"}`))
	if err == nil {
		t.Error("expected error for number without payload, got nil")
	}
}

func TestValueNumber_Coercion(t *testing.T) {
	cases := []struct {
		v    Value
		want float64
	}{
		{Number(5), 5},
		{Text("3.25"), 3.25},
		{Text("  7 "), 7},
		{Text("abc"), 0},
		{Text(""), 0},
		{Empty{}, 0},
		{nil, 0},
	}
	for _, tc := range cases {
		if got := ValueNumber(tc.v); got != tc.want {
			t.Errorf("ValueNumber(%#v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestValueString(t *testing.T) {
	if got := ValueString(Number(42)); got != "42" {
		t.Errorf("integer-valued number should render without fraction, got %q", got)
	}
	if got := ValueString(Number(2.5)); got != "2.5" {
		t.Errorf("ValueString(2.5) = %q", got)
	}
	if got := ValueString(Empty{}); got != "" {
		t.Errorf("empty should render as \"\", got %q", got)
	}
}

func TestValueEqual(t *testing.T) {
	if !ValueEqual(Empty{}, Text("   ")) {
		t.Error("whitespace text should equal Empty")
	}
	if !ValueEqual(nil, Empty{}) {
		t.Error("nil should equal Empty")
	}
	if ValueEqual(Text("a"), Text("A")) {
		t.Error("ValueEqual is exact, not case-insensitive")
	}
	if ValueEqual(Number(1), Text("1")) {
		t.Error("number and text payloads are distinct")
	}
}

func TestValueForKind(t *testing.T) {
	if v := ValueForKind(KindNumber, "12"); !ValueEqual(v, Number(12)) {
		t.Errorf("numeric input on NUMBER column should parse, got %#v", v)
	}
	// Unparseable input on a NUMBER column is kept as text, never dropped.
	if v := ValueForKind(KindNumber, "n/a"); !ValueEqual(v, Text("n/a")) {
		t.Errorf("unparseable input should stay text, got %#v", v)
	}
	if v := ValueForKind(KindText, "12"); !ValueEqual(v, Text("12")) {
		t.Errorf("TEXT column keeps text, got %#v", v)
	}
	if v := ValueForKind(KindText, "  "); !IsEmptyValue(v) {
		t.Errorf("blank input should normalize to Empty, got %#v", v)
	}
}

func TestIsTempID(t *testing.T) {
	perm := NewID()
	tmp := NewTempID()

	if IsTempID(perm) {
		t.Errorf("permanent id %q misclassified as temporary", perm)
	}
	if !IsTempID(tmp) {
		t.Errorf("temporary id %q misclassified as permanent", tmp)
	}
	if perm == tmp {
		t.Error("id ranges must be disjoint")
	}
}
