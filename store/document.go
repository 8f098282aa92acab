package store

import "encoding/json"

// Document is the bot's runtime configuration: a flat mapping of string
// keys to JSON-serializable values. Sub-mappings (warnings, guild_prefixes,
// ...) are one level deep. External writers may add keys freely; readers
// tolerate missing keys through the default-valued accessors below.
type Document map[string]any

// Well-known document keys referenced across the subsystem.
const (
	KeyLastSaved     = "last_saved"
	KeyGuildPrefixes = "guild_prefixes"
	KeyWebhookURL    = "webhook_url"
)

// DefaultPrefix is the command prefix for guilds with no override.
const DefaultPrefix = "!"

// Defaults returns a fresh document with every required key present.
func Defaults() Document {
	return Document{
		"log_channel_id":        nil,
		"guild_log_channels":    map[string]any{},
		"announcement_channels": map[string]any{},
		"ticket_category_id":    nil,
		"ticket_counter":        0,
		"muted_roles":           map[string]any{},
		"min_account_age_days":  7,
		"warnings":              map[string]any{},
		"temp_bans":             map[string]any{},
		"temp_mutes":            map[string]any{},
		"giveaways":             map[string]any{},
		"completed_giveaways":   map[string]any{},
		"role_prefixes":         map[string]any{},
		"webhook_url":           nil,
		"guild_languages":       map[string]any{},
		"guild_prefixes":        map[string]any{},
		"last_saved":            nil,
	}
}

// Clone returns a deep copy of the document. Nested maps and slices are
// copied; scalar values are shared as-is.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Encode renders the document exactly as the store writes it to disk:
// 4-space-indented JSON with a trailing newline.
func (d Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Int returns the value under key as an int, or def when the key is
// missing or holds a non-numeric value. JSON decoding produces float64,
// but documents built in code may hold native ints.
func (d Document) Int(key string, def int) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String returns the value under key as a string, or def when the key is
// missing or holds a non-string value.
func (d Document) String(key, def string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return def
}

// Map returns the sub-mapping under key, or nil when the key is missing
// or holds a non-mapping value. The returned map is the document's own;
// callers holding a store-returned copy may mutate it safely.
func (d Document) Map(key string) map[string]any {
	if v, ok := d[key].(map[string]any); ok {
		return v
	}
	return nil
}
