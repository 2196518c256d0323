package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/sebastos1/aa/internal/platform/errors"
	"github.com/sebastos1/aa/internal/tracker/diag"
	trackersqlite "github.com/sebastos1/aa/internal/tracker/storage/sqlite"
)

func TestNewHydratesMergedPreferences(t *testing.T) {
	recorder := diag.NewRecorder(0)
	store := New(context.Background(), Multi{newFakeSubstrate("file", `{"coopMode":true}`)}, recorder)

	got := store.Get()
	want := Preferences{CoopMode: true}
	if !got.Equal(want) {
		t.Fatalf("prefs = %+v, want %+v", got, want)
	}
	if n := len(recorder.Events()); n != 0 {
		t.Fatalf("diagnostics = %d, want 0", n)
	}
}

func TestNewFallsBackToDefaultsOnCorruptPayload(t *testing.T) {
	recorder := diag.NewRecorder(0)
	store := New(context.Background(), Multi{newFakeSubstrate("file", `{not json`)}, recorder)

	if got := store.Get(); !got.Equal(Defaults()) {
		t.Fatalf("prefs = %+v, want defaults", got)
	}
	events := recorder.Events()
	if len(events) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(events))
	}
	if events[0].Kind != diag.KindPreferences || events[0].Code != apperrors.CodePreferencesParse {
		t.Fatalf("diagnostic = %+v", events[0])
	}
}

func TestNewWithoutPersistedValueUsesDefaults(t *testing.T) {
	recorder := diag.NewRecorder(0)
	store := New(context.Background(), Multi{newFakeSubstrate("file", "")}, recorder)
	if got := store.Get(); !got.Equal(Defaults()) {
		t.Fatalf("prefs = %+v, want defaults", got)
	}
	if n := len(recorder.Events()); n != 0 {
		t.Fatalf("diagnostics = %d, want 0", n)
	}
}

func TestNewToleratesNilDurableStore(t *testing.T) {
	store := New(context.Background(), nil, nil)
	if got := store.ToggleCoopMode(context.Background()); !got.CoopMode {
		t.Fatalf("prefs = %+v", got)
	}
}

func TestNewReadsNewestSubstrate(t *testing.T) {
	primary := newFakeSubstrate("sqlite", "")
	secondary := newFakeSubstrate("file", `{"testFlag":true}`)
	store := New(context.Background(), Multi{primary, secondary}, nil)
	if !store.Get().TestFlag {
		t.Fatal("expected value from second substrate")
	}

	primary.payload = []byte(`{"coopMode":true}`)
	store = New(context.Background(), Multi{primary, secondary}, nil)
	got := store.Get()
	if !got.CoopMode || got.TestFlag {
		t.Fatalf("prefs = %+v, want first substrate value on a tie", got)
	}

	now := time.Now()
	primary.updated = now.Add(-time.Hour)
	secondary.updated = now
	store = New(context.Background(), Multi{primary, secondary}, nil)
	got = store.Get()
	if got.CoopMode || !got.TestFlag {
		t.Fatalf("prefs = %+v, want newer second substrate value", got)
	}
}

func TestNewSkipsUnreadableSubstrate(t *testing.T) {
	recorder := diag.NewRecorder(0)
	broken := newFakeSubstrate("sqlite", "")
	broken.loadErr = errDiskFull
	store := New(context.Background(), Multi{broken, newFakeSubstrate("file", `{"coopMode":true}`)}, recorder)

	if !store.Get().CoopMode {
		t.Fatal("expected value from readable substrate")
	}
	events := recorder.Events()
	if len(events) != 1 || events[0].Code != apperrors.CodePreferencesRead {
		t.Fatalf("diagnostics = %+v", events)
	}
	if events[0].Attributes["substrate"] != "sqlite" {
		t.Fatalf("attributes = %v", events[0].Attributes)
	}
}

func TestMutationsPersistToEverySubstrate(t *testing.T) {
	ctx := context.Background()
	a := newFakeSubstrate("sqlite", "")
	b := newFakeSubstrate("file", "")
	store := New(ctx, Multi{a, b}, nil)

	store.ToggleCoopMode(ctx)
	store.SetSelectedPlayer(ctx, "u1")
	got := store.ToggleTestFlag(ctx)

	want := `{"testFlag":true,"coopMode":true,"selectedPlayerUuid":"u1"}`
	for _, sub := range []*fakeSubstrate{a, b} {
		if sub.stored() != want {
			t.Fatalf("%s payload = %s, want %s", sub.name, sub.stored(), want)
		}
		if sub.saves != 3 {
			t.Fatalf("%s saves = %d, want 3", sub.name, sub.saves)
		}
	}
	if selected, _ := got.Selected(); selected != "u1" || !got.CoopMode || !got.TestFlag {
		t.Fatalf("prefs = %+v", got)
	}
}

func TestMutationsChangeOnlyTargetedField(t *testing.T) {
	ctx := context.Background()
	store := New(ctx, Multi{newFakeSubstrate("file", `{"testFlag":true,"selectedPlayerUuid":"u1"}`)}, nil)

	got := store.ToggleCoopMode(ctx)
	if !got.CoopMode || !got.TestFlag {
		t.Fatalf("prefs = %+v", got)
	}
	if selected, _ := got.Selected(); selected != "u1" {
		t.Fatalf("selected = %q", selected)
	}

	got = store.SetSelectedPlayer(ctx, "")
	if _, ok := got.Selected(); ok {
		t.Fatal("expected selection cleared")
	}
	if !got.CoopMode || !got.TestFlag {
		t.Fatalf("prefs = %+v", got)
	}
}

func TestSubstrateFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	recorder := diag.NewRecorder(0)
	broken := newFakeSubstrate("sqlite", "")
	broken.saveErr = errDiskFull
	healthy := newFakeSubstrate("file", "")
	store := New(ctx, Multi{broken, healthy}, recorder)

	got := store.ToggleCoopMode(ctx)
	if !got.CoopMode || !store.Get().CoopMode {
		t.Fatal("expected in-memory update despite write failure")
	}
	if healthy.stored() != `{"testFlag":false,"coopMode":true,"selectedPlayerUuid":null}` {
		t.Fatalf("healthy payload = %s", healthy.stored())
	}
	events := recorder.Events()
	if len(events) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(events))
	}
	if events[0].Code != apperrors.CodePreferencesWrite || events[0].Attributes["substrate"] != "sqlite" {
		t.Fatalf("diagnostic = %+v", events[0])
	}
}

func TestUnavailableSubstrateIsSkipped(t *testing.T) {
	ctx := context.Background()
	offline := newFakeSubstrate("sqlite", `{"coopMode":true}`)
	offline.unavailable = true
	store := New(ctx, Multi{offline, newFakeSubstrate("file", "")}, nil)

	if store.Get().CoopMode {
		t.Fatal("read from unavailable substrate")
	}
	store.ToggleTestFlag(ctx)
	if offline.saves != 0 {
		t.Fatalf("saves = %d, want 0", offline.saves)
	}
}

func TestSubscribersObserveMutationsInOrder(t *testing.T) {
	ctx := context.Background()
	store := New(ctx, nil, nil)

	var seen []bool
	unsubscribe := store.Subscribe(func(p Preferences) {
		seen = append(seen, p.CoopMode)
	})
	store.ToggleCoopMode(ctx)
	store.ToggleCoopMode(ctx)
	unsubscribe()
	store.ToggleCoopMode(ctx)

	want := []bool{false, true, false}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := New(ctx, nil, nil)
	store.SetSelectedPlayer(ctx, "u1")

	got := store.Get()
	*got.SelectedPlayerUUID = "mutated"
	if selected, _ := store.Get().Selected(); selected != "u1" {
		t.Fatalf("selected = %q", selected)
	}
}

func TestHydratesFromFileBeforeSQLiteIsAttached(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	file := NewFileStore(FilePath(dir))
	if err := file.Save(ctx, []byte(`{"coopMode":true,"selectedPlayerUuid":"u1"}`)); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	interactive := NewLateBound("sqlite")
	store := New(ctx, Multi{interactive, file}, nil)
	if !store.Get().CoopMode {
		t.Fatal("expected hydration from file")
	}

	db, err := trackersqlite.Open(filepath.Join(dir, "tracker.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	interactive.Attach(NewKVStore(db))

	if got := store.Reload(ctx); !got.CoopMode {
		t.Fatalf("reload = %+v", got)
	}

	store.ToggleTestFlag(ctx)
	record, found, err := db.GetPreference(ctx, Key)
	if err != nil || !found {
		t.Fatalf("sqlite preference found=%v err=%v", found, err)
	}
	want := `{"testFlag":true,"coopMode":true,"selectedPlayerUuid":"u1"}`
	if string(record.Payload) != want {
		t.Fatalf("sqlite payload = %s, want %s", record.Payload, want)
	}
	data, err := os.ReadFile(file.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != want {
		t.Fatalf("file payload = %s, want %s", data, want)
	}

	fresh := New(ctx, Multi{NewKVStore(db), NewFileStore(file.Path())}, nil)
	if !fresh.Get().Equal(store.Get()) {
		t.Fatalf("fresh = %+v, want %+v", fresh.Get(), store.Get())
	}
}

func TestReloadKeepsCurrentValueOnCorruptPayload(t *testing.T) {
	ctx := context.Background()
	sub := newFakeSubstrate("file", `{"coopMode":true}`)
	store := New(ctx, Multi{sub}, nil)

	sub.payload = []byte(`garbage`)
	if got := store.Reload(ctx); !got.CoopMode {
		t.Fatalf("reload = %+v", got)
	}
	if got, err := Decode([]byte(sub.stored())); err != nil || !got.CoopMode {
		t.Fatalf("substrate not repaired: %s", sub.stored())
	}
}

func TestReloadKeepsNewerFileOverStaleSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := trackersqlite.Open(filepath.Join(dir, "tracker.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.PutPreference(ctx, Key, []byte(`{"coopMode":false}`)); err != nil {
		t.Fatalf("seed sqlite: %v", err)
	}

	// The last run could only reach the file.
	file := NewFileStore(FilePath(dir))
	if err := file.Save(ctx, []byte(`{"coopMode":true}`)); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(file.Path(), later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	interactive := NewLateBound("sqlite")
	store := New(ctx, Multi{interactive, file}, nil)
	interactive.Attach(NewKVStore(db))
	if got := store.Reload(ctx); !got.CoopMode {
		t.Fatalf("reload = %+v, want newer file value", got)
	}

	record, found, err := db.GetPreference(ctx, Key)
	if err != nil || !found {
		t.Fatalf("sqlite preference found=%v err=%v", found, err)
	}
	if got, err := Decode(record.Payload); err != nil || !got.CoopMode {
		t.Fatalf("sqlite payload = %s, want reconciled value", record.Payload)
	}
}

func TestReloadAdoptsNewerSQLiteValue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	file := NewFileStore(FilePath(dir))
	if err := file.Save(ctx, []byte(`{"testFlag":true}`)); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	earlier := time.Now().Add(-time.Hour)
	if err := os.Chtimes(file.Path(), earlier, earlier); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	db, err := trackersqlite.Open(filepath.Join(dir, "tracker.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.PutPreference(ctx, Key, []byte(`{"coopMode":true}`)); err != nil {
		t.Fatalf("seed sqlite: %v", err)
	}

	interactive := NewLateBound("sqlite")
	store := New(ctx, Multi{interactive, file}, nil)
	if !store.Get().TestFlag {
		t.Fatalf("hydrated = %+v, want file value", store.Get())
	}
	interactive.Attach(NewKVStore(db))
	got := store.Reload(ctx)
	if !got.CoopMode || got.TestFlag {
		t.Fatalf("reload = %+v, want sqlite value", got)
	}
	data, err := os.ReadFile(file.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if fromFile, err := Decode(data); err != nil || !fromFile.Equal(got) {
		t.Fatalf("file = %s, want reconciled value", data)
	}
}

func TestFileStoreMissingFileIsNotAnError(t *testing.T) {
	file := NewFileStore(filepath.Join(t.TempDir(), "nested", "client-settings.json"))
	_, found, err := file.Load(context.Background())
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if err := file.Save(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	record, found, err := file.Load(context.Background())
	if err != nil || !found || string(record.Payload) != `{}` {
		t.Fatalf("payload=%s found=%v err=%v", record.Payload, found, err)
	}
	if record.UpdatedAt.IsZero() {
		t.Fatal("expected modification time")
	}
	entries, err := os.ReadDir(filepath.Dir(file.Path()))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want only the preferences file", len(entries))
	}
}

func TestLateBoundReportsUnattached(t *testing.T) {
	late := NewLateBound("sqlite")
	if late.Available() {
		t.Fatal("expected unavailable before attach")
	}
	if err := late.Save(context.Background(), []byte(`{}`)); !apperrors.HasCode(err, apperrors.CodePreferencesWrite) {
		t.Fatalf("save err = %v", err)
	}
	late.Attach(newFakeSubstrate("inner", ""))
	if !late.Available() {
		t.Fatal("expected available after attach")
	}
}
