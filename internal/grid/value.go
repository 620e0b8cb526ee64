package grid

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a sealed interface representing a cell payload.
// Only Text, Number, and Empty implement it. Cells never hold arbitrary
// JSON: the union is closed so every consumer can type-switch exhaustively.
type Value interface {
	cellValue() // Sealed - only these types implement it
}

// Text is a free-text cell payload.
type Text string

func (Text) cellValue() {}

// Number is a numeric cell payload. Stored as float64; integer-valued
// numbers serialize without a fractional part.
type Number float64

func (Number) cellValue() {}

// Empty is the absent payload. A missing Cell and a Cell holding Empty
// are equivalent everywhere.
type Empty struct{}

func (Empty) cellValue() {}

// valueEnvelope is the wire form of a Value at the store boundary.
// The kind tag keeps the union closed across serialization.
type valueEnvelope struct {
	Kind string   `json:"kind"`
	Text string   `json:"text,omitempty"`
	Num  *float64 `json:"num,omitempty"`
}

const (
	envelopeText   = "text"
	envelopeNumber = "number"
	envelopeEmpty  = "empty"
)

// MarshalValue serializes a Value to its tagged JSON envelope.
// A nil Value marshals as Empty.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Empty:
		return json.Marshal(valueEnvelope{Kind: envelopeEmpty})
	case Text:
		return json.Marshal(valueEnvelope{Kind: envelopeText, Text: string(val)})
	case Number:
		f := float64(val)
		return json.Marshal(valueEnvelope{Kind: envelopeNumber, Num: &f})
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue parses a tagged JSON envelope back into a Value.
// Unknown kind tags are rejected rather than coerced.
func UnmarshalValue(data []byte) (Value, error) {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	switch env.Kind {
	case envelopeEmpty, "":
		return Empty{}, nil
	case envelopeText:
		return Text(env.Text), nil
	case envelopeNumber:
		if env.Num == nil {
			return nil, fmt.Errorf("unmarshal value: number envelope missing num")
		}
		return Number(*env.Num), nil
	default:
		return nil, fmt.Errorf("unmarshal value: unknown kind %q", env.Kind)
	}
}

// ValueString renders a Value as display text.
// Empty renders as "". Numbers use the shortest round-trip form.
func ValueString(v Value) string {
	switch val := v.(type) {
	case nil, Empty:
		return ""
	case Text:
		return string(val)
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	default:
		return ""
	}
}

// ValueNumber coerces a Value to a float64 for numeric comparison.
// Numbers return their payload; text parses leniently (leading/trailing
// space ignored); everything unparseable, Empty included, coerces to 0.
func ValueNumber(v Value) float64 {
	switch val := v.(type) {
	case Number:
		return float64(val)
	case Text:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// IsEmptyValue reports whether a Value reads as empty: nil, Empty,
// or text that is all whitespace.
func IsEmptyValue(v Value) bool {
	switch val := v.(type) {
	case nil, Empty:
		return true
	case Text:
		return strings.TrimSpace(string(val)) == ""
	default:
		return false
	}
}

// ValueEqual reports whether two Values are the same payload.
// Used by the edit flusher to suppress no-op persistence calls.
func ValueEqual(a, b Value) bool {
	if IsEmptyValue(a) && IsEmptyValue(b) {
		return true
	}
	switch av := a.(type) {
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	default:
		return false
	}
}

// ValueForKind normalizes raw user input into a Value appropriate for a
// column kind. NUMBER columns parse the input; unparseable input is kept
// as text so the user's keystrokes are never silently dropped.
func ValueForKind(kind ColumnKind, raw string) Value {
	if strings.TrimSpace(raw) == "" {
		return Empty{}
	}
	if kind == KindNumber {
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return Number(f)
		}
	}
	return Text(raw)
}
