package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tnicklin/steward/events"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func newTestStore(t *testing.T) (*FileStore, *fakeClock) {
	t.Helper()
	fc := &fakeClock{now: time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)}
	st := New(Params{
		Path:  filepath.Join(t.TempDir(), "bot_config.json"),
		Clock: fc,
	})
	return st, fc
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// mustJSON canonicalizes a value for comparison. Go marshals map keys
// sorted, so equal documents produce equal strings regardless of how
// their numbers were typed in memory.
func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestNewDefaults(t *testing.T) {
	st := New(Params{})
	if st.Path() != DefaultPath {
		t.Fatalf("expected path %s, got %s", DefaultPath, st.Path())
	}
	if st.BackupPath() != "bot_config.backup.json" {
		t.Fatalf("expected derived backup path, got %s", st.BackupPath())
	}
}

func TestBackupPathFor(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"bot_config.json", "bot_config.backup.json"},
		{"/etc/steward/bot_config.json", "/etc/steward/bot_config.backup.json"},
		{"state", "state.backup"},
	}
	for _, tc := range cases {
		if got := BackupPathFor(tc.path); got != tc.want {
			t.Errorf("BackupPathFor(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	st, _ := newTestStore(t)

	res := st.Load()
	if res.Source != SourceDefaults {
		t.Fatalf("expected defaults source, got %s", res.Source)
	}
	if res.PrimaryErr != nil || res.BackupErr != nil {
		t.Fatalf("missing file should not report errors, got %v / %v", res.PrimaryErr, res.BackupErr)
	}
	if !reflect.DeepEqual(res.Document, Defaults()) {
		t.Fatalf("expected default document, got %#v", res.Document)
	}

	// Defaults are not cached, so a file appearing afterwards is
	// visible to the next cache read.
	writeFile(t, st.Path(), []byte(`{"ticket_counter": 9}`))
	if got := st.Cached().Int("ticket_counter", 0); got != 9 {
		t.Fatalf("expected cache miss to read disk, got counter %d", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st, fc := newTestStore(t)

	doc := Defaults()
	doc["ticket_counter"] = 3
	doc["webhook_url"] = "https://discord.com/api/webhooks/1/token"
	doc[KeyGuildPrefixes].(map[string]any)["123456789"] = "?"

	res, err := st.Save(doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	wantStamp := fc.now.Format(time.RFC3339Nano)
	if res.LastSaved != wantStamp {
		t.Fatalf("expected last_saved %s, got %s", wantStamp, res.LastSaved)
	}
	if !res.SavedAt.Equal(fc.now) {
		t.Fatalf("expected SavedAt %v, got %v", fc.now, res.SavedAt)
	}
	if doc[KeyLastSaved] != wantStamp {
		t.Fatalf("expected document stamped in place, got %v", doc[KeyLastSaved])
	}

	loaded := st.Load()
	if loaded.Source != SourcePrimary {
		t.Fatalf("expected primary source, got %s", loaded.Source)
	}
	if mustJSON(t, loaded.Document) != mustJSON(t, doc) {
		t.Fatalf("round trip mismatch:\nsaved:  %s\nloaded: %s", mustJSON(t, doc), mustJSON(t, loaded.Document))
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	doc := Defaults()
	doc["ticket_counter"] = 41
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	first := st.Load()
	second := st.Load()
	if mustJSON(t, first.Document) != mustJSON(t, second.Document) {
		t.Fatalf("consecutive loads differ:\n%s\n%s", mustJSON(t, first.Document), mustJSON(t, second.Document))
	}
}

func TestSaveNilDocument(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Save(nil); err == nil {
		t.Fatal("expected error saving nil document")
	}
}

func TestSaveAtomicOnPublishFailure(t *testing.T) {
	st, _ := newTestStore(t)

	doc := Defaults()
	doc["ticket_counter"] = 1
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("initial save: %v", err)
	}
	before, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("read primary: %v", err)
	}

	st.rename = func(oldpath, newpath string) error {
		return errors.New("simulated crash before rename")
	}
	doc["ticket_counter"] = 2
	if _, err := st.Save(doc); err == nil {
		t.Fatal("expected save to fail")
	}

	after, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("read primary after failure: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("primary changed across failed save:\nbefore: %s\nafter:  %s", before, after)
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(st.Path()), "config_tmp_*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("staging files left behind: %v", leftovers)
	}

	// The cache still reflects the last committed state.
	if got := st.Cached().Int("ticket_counter", -1); got != 1 {
		t.Fatalf("expected cached counter 1 after failed save, got %d", got)
	}
}

func TestSaveBacksUpPreviousState(t *testing.T) {
	st, fc := newTestStore(t)

	doc := Defaults()
	doc["ticket_counter"] = 1
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := os.Stat(st.BackupPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no backup after first save, stat err %v", err)
	}

	fc.now = fc.now.Add(time.Minute)
	doc["ticket_counter"] = 2
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("second save: %v", err)
	}

	braw, err := os.ReadFile(st.BackupPath())
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	bdoc, err := Parse(braw)
	if err != nil {
		t.Fatalf("decode backup: %v", err)
	}
	if got := bdoc.Int("ticket_counter", -1); got != 1 {
		t.Fatalf("expected backup to hold previous state, got counter %d", got)
	}
}

func TestSaveKeepsBackupWhenPrimaryCorrupt(t *testing.T) {
	st, fc := newTestStore(t)

	doc := Defaults()
	doc["ticket_counter"] = 1
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("first save: %v", err)
	}
	fc.now = fc.now.Add(time.Minute)
	doc["ticket_counter"] = 2
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("second save: %v", err)
	}
	goodBackup, err := os.ReadFile(st.BackupPath())
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}

	// Corrupt the primary out from under the store, then save again.
	writeFile(t, st.Path(), []byte("{ this is not json"))
	fc.now = fc.now.Add(time.Minute)
	doc["ticket_counter"] = 3
	res, err := st.Save(doc)
	if err != nil {
		t.Fatalf("save over corrupt primary: %v", err)
	}
	if res.BackupErr == nil {
		t.Fatal("expected BackupErr when primary was unparsable")
	}

	after, err := os.ReadFile(st.BackupPath())
	if err != nil {
		t.Fatalf("read backup after save: %v", err)
	}
	if string(goodBackup) != string(after) {
		t.Fatal("corrupt primary overwrote the good backup")
	}

	loaded := st.Load()
	if loaded.Source != SourcePrimary || loaded.Document.Int("ticket_counter", -1) != 3 {
		t.Fatalf("expected repaired primary with counter 3, got %s / %d", loaded.Source, loaded.Document.Int("ticket_counter", -1))
	}
}

func TestLoadFallsBackToBackup(t *testing.T) {
	st, _ := newTestStore(t)

	backup := Defaults()
	backup["ticket_counter"] = 7
	writeFile(t, st.BackupPath(), []byte(mustJSON(t, backup)))
	corrupt := []byte("{ torn write")
	writeFile(t, st.Path(), corrupt)

	res := st.Load()
	if res.Source != SourceBackup {
		t.Fatalf("expected backup source, got %s", res.Source)
	}
	if res.PrimaryErr == nil {
		t.Fatal("expected PrimaryErr for corrupt primary")
	}
	if res.BackupErr != nil {
		t.Fatalf("unexpected BackupErr: %v", res.BackupErr)
	}
	if got := res.Document.Int("ticket_counter", -1); got != 7 {
		t.Fatalf("expected backup document, got counter %d", got)
	}

	// Recovery is read-only: the corrupt primary is left for inspection.
	raw, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("read primary: %v", err)
	}
	if string(raw) != string(corrupt) {
		t.Fatal("load modified the primary file")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	cases := []struct {
		name    string
		primary string
		backup  string
	}{
		{"corrupt primary no backup", "{ torn", ""},
		{"corrupt primary corrupt backup", "{ torn", "also not json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, _ := newTestStore(t)
			writeFile(t, st.Path(), []byte(tc.primary))
			if tc.backup != "" {
				writeFile(t, st.BackupPath(), []byte(tc.backup))
			}

			res := st.Load()
			if res.Source != SourceDefaults {
				t.Fatalf("expected defaults source, got %s", res.Source)
			}
			if res.PrimaryErr == nil || res.BackupErr == nil {
				t.Fatalf("expected both errors recorded, got %v / %v", res.PrimaryErr, res.BackupErr)
			}
			if !reflect.DeepEqual(res.Document, Defaults()) {
				t.Fatalf("expected default document, got %#v", res.Document)
			}
		})
	}
}

func TestLoadRejectsNonObjectJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"null", "null"},
		{"array", `[1, 2, 3]`},
		{"scalar", `"hello"`},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, _ := newTestStore(t)
			writeFile(t, st.Path(), []byte(tc.content))

			res := st.Load()
			if res.Source != SourceDefaults {
				t.Fatalf("expected defaults source, got %s", res.Source)
			}
			if res.PrimaryErr == nil {
				t.Fatal("expected PrimaryErr for non-object root")
			}
		})
	}
}

func TestCachedServesLastGoodLoad(t *testing.T) {
	st, _ := newTestStore(t)

	doc := Defaults()
	doc["ticket_counter"] = 5
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(st.Path()); err != nil {
		t.Fatalf("remove primary: %v", err)
	}

	// Cache is warm from the save, so the missing file is not noticed.
	if got := st.Cached().Int("ticket_counter", -1); got != 5 {
		t.Fatalf("expected cached counter 5, got %d", got)
	}

	// A load against the missing file yields defaults without evicting
	// the cached document.
	res := st.Load()
	if res.Source != SourceDefaults {
		t.Fatalf("expected defaults source, got %s", res.Source)
	}
	if got := st.Cached().Int("ticket_counter", -1); got != 5 {
		t.Fatalf("expected cache untouched by default load, got %d", got)
	}
}

func TestCachedReturnsCopies(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Save(Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}

	first := st.Cached()
	first["ticket_counter"] = 999
	first.Map(KeyGuildPrefixes)["123"] = "$"

	second := st.Cached()
	if got := second.Int("ticket_counter", -1); got != 0 {
		t.Fatalf("cache mutated through returned copy, counter %d", got)
	}
	if _, ok := second.Map(KeyGuildPrefixes)["123"]; ok {
		t.Fatal("cache nested map mutated through returned copy")
	}
}

func TestRefreshPicksUpExternalEdits(t *testing.T) {
	st, _ := newTestStore(t)

	doc := Defaults()
	doc["ticket_counter"] = 1
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Simulate an external writer replacing the file.
	edited := Defaults()
	edited["ticket_counter"] = 2
	writeFile(t, st.Path(), []byte(mustJSON(t, edited)))

	if got := st.Cached().Int("ticket_counter", -1); got != 1 {
		t.Fatalf("expected stale cache before refresh, got %d", got)
	}

	res := st.Refresh()
	if res.Source != SourcePrimary {
		t.Fatalf("expected primary source, got %s", res.Source)
	}
	if got := res.Document.Int("ticket_counter", -1); got != 2 {
		t.Fatalf("expected refreshed counter 2, got %d", got)
	}
	if got := st.Cached().Int("ticket_counter", -1); got != 2 {
		t.Fatalf("expected cache updated by refresh, got %d", got)
	}
}

func TestGuildPrefixDefault(t *testing.T) {
	st, _ := newTestStore(t)
	if got := st.GuildPrefix("42"); got != DefaultPrefix {
		t.Fatalf("expected default prefix %q, got %q", DefaultPrefix, got)
	}

	// Non-string values under the guild fall back to the default too.
	doc := Defaults()
	doc[KeyGuildPrefixes].(map[string]any)["42"] = 7
	if _, err := st.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := st.GuildPrefix("42"); got != DefaultPrefix {
		t.Fatalf("expected default prefix for non-string value, got %q", got)
	}
}

func TestSetGuildPrefixRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)

	got, err := st.SetGuildPrefix("123456789", "?")
	if err != nil {
		t.Fatalf("set prefix: %v", err)
	}
	if got != "?" {
		t.Fatalf("expected returned prefix ?, got %q", got)
	}
	if p := st.GuildPrefix("123456789"); p != "?" {
		t.Fatalf("expected prefix ?, got %q", p)
	}
	if p := st.GuildPrefix("987654321"); p != DefaultPrefix {
		t.Fatalf("expected other guilds unaffected, got %q", p)
	}

	// A fresh store against the same file sees the persisted prefix.
	st2 := New(Params{Path: st.Path()})
	val := st2.Load().Document.Map(KeyGuildPrefixes)["123456789"]
	if s, ok := val.(string); !ok || s != "?" {
		t.Fatalf("expected persisted string prefix, got %T %v", val, val)
	}
}

func TestUpdate(t *testing.T) {
	st, _ := newTestStore(t)

	doc, err := st.Update("webhook_url", "https://discord.com/api/webhooks/1/token")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := doc.String(KeyWebhookURL, ""); got != "https://discord.com/api/webhooks/1/token" {
		t.Fatalf("expected webhook url set, got %q", got)
	}
	if doc[KeyLastSaved] == nil {
		t.Fatal("expected update to stamp last_saved")
	}

	loaded := st.Load()
	if got := loaded.Document.String(KeyWebhookURL, ""); got != "https://discord.com/api/webhooks/1/token" {
		t.Fatalf("expected persisted webhook url, got %q", got)
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestSavePublishesSavedEvent(t *testing.T) {
	fc := &fakeClock{now: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)}
	pub := &fakePublisher{}
	st := New(Params{
		Path:   filepath.Join(t.TempDir(), "bot_config.json"),
		Clock:  fc,
		Events: pub,
	})

	if _, err := st.Save(Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(pub.subjects) != 1 || pub.subjects[0] != events.SubjectSaved {
		t.Fatalf("expected one %s event, got %v", events.SubjectSaved, pub.subjects)
	}
	ev, ok := pub.payloads[0].(events.Saved)
	if !ok {
		t.Fatalf("unexpected payload type %T", pub.payloads[0])
	}
	if ev.Path != st.Path() || ev.LastSaved != fc.now.Format(time.RFC3339Nano) || !ev.BackupOK {
		t.Fatalf("unexpected event %+v", ev)
	}

	// A failed save publishes nothing.
	st.rename = func(oldpath, newpath string) error {
		return errors.New("simulated crash before rename")
	}
	if _, err := st.Save(Defaults()); err == nil {
		t.Fatal("expected save to fail")
	}
	if len(pub.subjects) != 1 {
		t.Fatalf("failed save must not publish, got %v", pub.subjects)
	}
}

func TestConcurrentWritersDoNotDropUpdates(t *testing.T) {
	st, _ := newTestStore(t)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := st.SetGuildPrefix(fmt.Sprintf("guild-%d", n), "?"); err != nil {
				t.Errorf("set prefix %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	prefixes := st.Load().Document.Map(KeyGuildPrefixes)
	for i := 0; i < writers; i++ {
		id := fmt.Sprintf("guild-%d", i)
		if prefixes[id] != "?" {
			t.Errorf("update for %s was dropped", id)
		}
	}
}
