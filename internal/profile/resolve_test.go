package profile

import (
	"encoding/json"
	"testing"
)

func TestResolveText(t *testing.T) {
	record := map[string]any{
		"_msg":         "  hello  ",
		"blank":        "   ",
		"empty":        "",
		"nothing":      nil,
		"count":        float64(42),
		"ratio":        1.5,
		"big":          json.Number("12345678901234567890"),
		"flag":         true,
		"nested":       map[string]any{"a": 1},
		"SeverityText": "WARN",
	}

	tests := []struct {
		name   string
		sel    FieldSelector
		want   string
		wantOK bool
	}{
		{"trims strings", Single("_msg"), "hello", true},
		{"blank string is absent", Single("blank"), "", false},
		{"empty string is absent", Single("empty"), "", false},
		{"nil is absent", Single("nothing"), "", false},
		{"missing key is absent", Single("missing"), "", false},
		{"integral float", Single("count"), "42", true},
		{"fractional float", Single("ratio"), "1.5", true},
		{"json number keeps text", Single("big"), "12345678901234567890", true},
		{"bool", Single("flag"), "true", true},
		{"object is not text", Single("nested"), "", false},
		{"fallback skips absent", Fallbacks("severity", "blank", "SeverityText"), "WARN", true},
		{"fallback order wins", Fallbacks("_msg", "SeverityText"), "hello", true},
		{"fallback all absent", Fallbacks("a", "b"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveText(record, &tt.sel)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ResolveText(%s) = (%q, %v), want (%q, %v)", tt.sel.String(), got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveTextNilSelector(t *testing.T) {
	if _, ok := ResolveText(map[string]any{"a": "b"}, nil); ok {
		t.Error("nil selector must resolve to nothing")
	}
}

func TestResolveMatch(t *testing.T) {
	nested := map[string]any{"k": "v"}
	record := map[string]any{
		"blank":  " ",
		"nested": nested,
		"name":   "svc",
	}

	key, value, ok := ResolveMatch(record, ptr(Fallbacks("missing", "blank", "nested", "name")))
	if !ok || key != "nested" {
		t.Fatalf("ResolveMatch key = %q ok=%v, want nested", key, ok)
	}
	if got, _ := value.(map[string]any); got["k"] != "v" {
		t.Errorf("ResolveMatch returned %v, want original value", value)
	}

	if _, _, ok := ResolveMatch(record, ptr(Single("blank"))); ok {
		t.Error("blank string must not match")
	}
}

func ptr(s FieldSelector) *FieldSelector { return &s }
