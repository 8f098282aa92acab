package main

import (
	"reflect"
	"testing"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"integer", "42", float64(42)},
		{"boolean", "true", true},
		{"null", "null", nil},
		{"quoted string", `"hello"`, "hello"},
		{"object", `{"a": 1}`, map[string]any{"a": float64(1)}},
		{"array", `[1, 2]`, []any{float64(1), float64(2)}},
		{"bare string", "hello", "hello"},
		{"url stays a string", "https://example.com/hook", "https://example.com/hook"},
		{"prefix punctuation", "!", "!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseValue(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}
