package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/model"
	"github.com/sebastos1/aa/internal/tracker/prefs"
	"github.com/sebastos1/aa/internal/tracker/state"
	"github.com/sebastos1/aa/internal/tracker/stream"
	"github.com/sebastos1/aa/internal/tracker/view"
)

type fixture struct {
	server   *Server
	mirror   *state.Mirror
	prefs    *prefs.Store
	recorder *diag.Recorder
}

type fixedStream struct {
	state stream.State
	stats stream.Stats
}

func (f fixedStream) State() stream.State { return f.state }

func (f fixedStream) Stats() stream.Stats { return f.stats }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mirror := state.NewMirror()
	mirror.Update(func(tx *state.Tx) {
		tx.SetPlayer("u1", model.Player(`{"name":"Alice","avatar_url":"https://example.test/a.png"}`))
		tx.SetPlayer("u2", model.Player(`{"name":"Bob"}`))
		tx.SetProgress("a1", "u1", model.ProgressDetail(`{"done":true}`))
		tx.SetProgress("a2", "u1", model.ProgressDetail(`{"done":false}`))
	})
	static := state.NewStatic()
	snap := model.EmptySnapshot()
	snap.World = map[string]json.RawMessage{"name": json.RawMessage(`"Survival <3>"`)}
	snap.Advancements = map[model.AdvancementKey]json.RawMessage{"a1": json.RawMessage(`{}`), "a2": json.RawMessage(`{}`)}
	if err := static.Load(snap); err != nil {
		t.Fatalf("load static: %v", err)
	}

	recorder := diag.NewRecorder(0)
	recorder.Report(ctx, diag.Event{Kind: diag.KindTransport, Severity: diag.SeverityWarn, Message: "event stream interrupted"})
	store := prefs.New(ctx, nil, nil)
	selected := view.NewSelectedPlayer(mirror, store)
	t.Cleanup(selected.Close)

	server := New(Deps{
		Mirror:      mirror,
		Static:      static,
		Preferences: store,
		Selection:   selected,
		Stream:      fixedStream{state: stream.StateOpen, stats: stream.Stats{Delivered: 7, Dropped: 1, Reconnects: 2}},
		Diagnostics: recorder,
	})
	t.Cleanup(server.Close)
	return &fixture{server: server, mirror: mirror, prefs: store, recorder: recorder}
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values, accept string) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestStateEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/state?diagnostics=1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got StateView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.World != "Survival <3>" || got.Advancements != 2 || got.Stream != "open" {
		t.Fatalf("header fields = %+v", got)
	}
	if len(got.Players) != 2 || got.Players[0].Name != "Alice" || got.Players[0].Completed != 1 {
		t.Fatalf("players = %+v", got.Players)
	}
	if got.Players[0].AvatarURL != "https://example.test/a.png" {
		t.Fatalf("avatar = %q", got.Players[0].AvatarURL)
	}
	if got.Selected != nil {
		t.Fatalf("selected = %+v, want none", got.Selected)
	}
	if _, ok := got.Progress["a1"]["u1"]; !ok {
		t.Fatalf("progress = %v", got.Progress)
	}
	if len(got.Diagnostics) != 1 || got.Diagnostics[0].Kind != "transport" {
		t.Fatalf("diagnostics = %+v", got.Diagnostics)
	}
	if got.Version != f.mirror.Version() {
		t.Fatalf("version = %d, want %d", got.Version, f.mirror.Version())
	}
	want := stream.Stats{Delivered: 7, Dropped: 1, Reconnects: 2}
	if got.StreamStats == nil || *got.StreamStats != want {
		t.Fatalf("stream stats = %+v, want %+v", got.StreamStats, want)
	}
}

func TestStateEndpointOmitsDiagnosticsByDefault(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/state", nil, "")
	if strings.Contains(rec.Body.String(), `"diagnostics"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestIndexRendersEscapedPage(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>Survival &lt;3&gt;</title>",
		"2 players tracked",
		"2 advancements",
		`data-uuid="u1"`,
		"Alice",
		"1 completed",
		"event stream interrupted",
		`action="/prefs/coop-mode"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
	if strings.Contains(body, "Survival <3>") {
		t.Fatal("world name not escaped")
	}
}

func TestIndexRendersPreferencesAndSelection(t *testing.T) {
	f := newFixture(t)
	body := f.do(t, http.MethodGet, "/", nil, "").Body.String()
	if strings.Contains(body, " checked") {
		t.Fatal("expected no checked toggles")
	}
	if !strings.Contains(body, "<p>None</p>") {
		t.Fatal("expected empty selection")
	}

	f.prefs.ToggleCoopMode(context.Background())
	f.prefs.SetSelectedPlayer(context.Background(), "u1")
	body = f.do(t, http.MethodGet, "/", nil, "").Body.String()
	if strings.Count(body, " checked") != 1 {
		t.Fatalf("expected one checked toggle: %s", body)
	}
	for _, want := range []string{`value="Alice"`, "Alice (1 completed)"} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestIndexUsesRequestLanguage(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "2 jogadores acompanhados") {
		t.Fatalf("page not localized: %s", rec.Body.String())
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/nope", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/prefs/coop-mode", nil, ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestToggleRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/prefs/coop-mode", nil, "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if !f.prefs.Get().CoopMode {
		t.Fatal("expected coop mode on")
	}

	rec = f.do(t, http.MethodPost, "/prefs/test-flag", nil, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got prefs.Preferences
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.TestFlag || !got.CoopMode {
		t.Fatalf("prefs = %+v", got)
	}
}

func TestSelectPlayerRoute(t *testing.T) {
	tests := []struct {
		name   string
		player string
		status int
		want   string
	}{
		{name: "by uuid", player: "u2", status: http.StatusOK, want: "u2"},
		{name: "by name", player: "alice", status: http.StatusOK, want: "u1"},
		{name: "by approximate name", player: "Bbo", status: http.StatusOK, want: "u2"},
		{name: "unknown", player: "Herobrine", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/prefs/selected-player", url.Values{"player": {tt.player}}, "application/json")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			selected, _ := f.prefs.Get().Selected()
			if selected != tt.want {
				t.Fatalf("selected = %q, want %q", selected, tt.want)
			}
		})
	}
}

func TestSelectPlayerRouteClearsSelection(t *testing.T) {
	f := newFixture(t)
	f.prefs.SetSelectedPlayer(context.Background(), "u1")

	rec := f.do(t, http.MethodGet, "/api/state", nil, "")
	var before StateView
	_ = json.Unmarshal(rec.Body.Bytes(), &before)
	if before.Selected == nil || before.Selected.UUID != "u1" {
		t.Fatalf("selected = %+v", before.Selected)
	}

	f.do(t, http.MethodPost, "/prefs/selected-player", url.Values{"player": {""}}, "")
	if _, ok := f.prefs.Get().Selected(); ok {
		t.Fatal("expected selection cleared")
	}
}

func TestRoutesWithoutPreferences(t *testing.T) {
	server := New(Deps{Mirror: state.NewMirror()})
	t.Cleanup(server.Close)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/prefs/coop-mode", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"stream":"disabled"`) {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}
