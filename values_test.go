package swarm

import (
	"encoding/json"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{7, int64(7)},
		{int32(7), int64(7)},
		{uint64(7), int64(7)},
		{float32(0.5), 0.5},
		{json.Number("12"), int64(12)},
		{json.Number("1.25"), 1.25},
		{"s", "s"},
		{true, true},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}

	list := Normalize([]any{1, []float64{1.5}}).([]any)
	if list[0] != int64(1) {
		t.Errorf("nested int = %#v, want int64(1)", list[0])
	}
	if inner := list[1].([]any); inner[0] != 1.5 {
		t.Errorf("nested float slice = %#v", inner)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{int64(0), false},
		{int64(-1), true},
		{0.0, false},
		{0.1, true},
		{"", false},
		{"x", true},
		{[]any{}, false},
		{[]any{nil}, true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.in); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "none"},
		{true, "true"},
		{int64(-3), "-3"},
		{2.0, "2"},
		{0.25, "0.25"},
		{"text", "text"},
		{[]any{int64(1), "a", []any{false}}, "[1, a, [false]]"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToIntToFloat(t *testing.T) {
	if v, ok := ToInt(2.9); !ok || v != 2 {
		t.Errorf("ToInt(2.9) = %d, %v", v, ok)
	}
	if _, ok := ToInt("1"); ok {
		t.Error("ToInt accepted a string")
	}
	if v, ok := ToFloat(3); !ok || v != 3 {
		t.Errorf("ToFloat(3) = %v, %v", v, ok)
	}
	if _, ok := ToFloat(true); ok {
		t.Error("ToFloat accepted a bool")
	}
}
