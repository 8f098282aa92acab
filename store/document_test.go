package store

import (
	"encoding/json"
	"testing"
)

func TestDefaultsShape(t *testing.T) {
	doc := Defaults()

	mappings := []string{
		"guild_log_channels",
		"announcement_channels",
		"muted_roles",
		"warnings",
		"temp_bans",
		"temp_mutes",
		"giveaways",
		"completed_giveaways",
		"role_prefixes",
		"guild_languages",
		"guild_prefixes",
	}
	for _, key := range mappings {
		m, ok := doc[key].(map[string]any)
		if !ok {
			t.Errorf("expected %s to be a mapping, got %T", key, doc[key])
			continue
		}
		if len(m) != 0 {
			t.Errorf("expected %s to start empty, got %v", key, m)
		}
	}

	for _, key := range []string{"log_channel_id", "ticket_category_id", "webhook_url", "last_saved"} {
		v, ok := doc[key]
		if !ok {
			t.Errorf("expected %s present", key)
		}
		if v != nil {
			t.Errorf("expected %s to default to null, got %v", key, v)
		}
	}

	if got := doc.Int("ticket_counter", -1); got != 0 {
		t.Errorf("expected ticket_counter 0, got %d", got)
	}
	if got := doc.Int("min_account_age_days", -1); got != 7 {
		t.Errorf("expected min_account_age_days 7, got %d", got)
	}

	if _, err := json.Marshal(doc); err != nil {
		t.Fatalf("defaults must serialize cleanly: %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc := Defaults()
	doc["warnings"].(map[string]any)["guild"] = []any{"first strike"}

	clone := doc.Clone()
	clone["ticket_counter"] = 99
	clone.Map("warnings")["guild"].([]any)[0] = "tampered"
	clone.Map("guild_prefixes")["123"] = "?"

	if got := doc.Int("ticket_counter", -1); got != 0 {
		t.Errorf("clone mutation leaked into original counter: %d", got)
	}
	if got := doc.Map("warnings")["guild"].([]any)[0]; got != "first strike" {
		t.Errorf("clone mutation leaked into nested slice: %v", got)
	}
	if _, ok := doc.Map("guild_prefixes")["123"]; ok {
		t.Error("clone mutation leaked into nested map")
	}
}

func TestCloneNil(t *testing.T) {
	var doc Document
	if doc.Clone() != nil {
		t.Fatal("expected nil clone of nil document")
	}
}

func TestIntCoercions(t *testing.T) {
	doc := Document{
		"native":  42,
		"wide":    int64(43),
		"decoded": float64(44),
		"text":    "45",
	}
	cases := []struct {
		key  string
		want int
	}{
		{"native", 42},
		{"wide", 43},
		{"decoded", 44},
		{"text", -1},
		{"missing", -1},
	}
	for _, tc := range cases {
		if got := doc.Int(tc.key, -1); got != tc.want {
			t.Errorf("Int(%q) = %d, want %d", tc.key, got, tc.want)
		}
	}
}

func TestStringAndMapAccessors(t *testing.T) {
	doc := Document{
		"name":   "steward",
		"count":  3,
		"nested": map[string]any{"a": "b"},
	}

	if got := doc.String("name", ""); got != "steward" {
		t.Errorf("String(name) = %q", got)
	}
	if got := doc.String("count", "fallback"); got != "fallback" {
		t.Errorf("expected fallback for non-string, got %q", got)
	}
	if got := doc.String("missing", "fallback"); got != "fallback" {
		t.Errorf("expected fallback for missing key, got %q", got)
	}

	if m := doc.Map("nested"); m == nil || m["a"] != "b" {
		t.Errorf("Map(nested) = %v", m)
	}
	if m := doc.Map("name"); m != nil {
		t.Errorf("expected nil for non-mapping value, got %v", m)
	}
	if m := doc.Map("missing"); m != nil {
		t.Errorf("expected nil for missing key, got %v", m)
	}
}

func TestEncodeMatchesDiskLayout(t *testing.T) {
	doc := Document{"guild_prefixes": map[string]any{"12345": "?"}, "ticket_counter": 3}

	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := "{\n    \"guild_prefixes\": {\n        \"12345\": \"?\"\n    },\n    \"ticket_counter\": 3\n}\n"
	if string(data) != want {
		t.Errorf("encoded form mismatch:\ngot:  %q\nwant: %q", data, want)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("parse encoded document: %v", err)
	}
	if parsed.Int("ticket_counter", -1) != 3 {
		t.Errorf("round trip lost ticket_counter: %v", parsed["ticket_counter"])
	}
}
