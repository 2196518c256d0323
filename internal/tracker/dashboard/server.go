// Package dashboard serves the tracker's local web surface: an HTML view of
// the mirrored state, a JSON snapshot, the preference actions, and a
// WebSocket that tells browsers when to refresh.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/prefs"
	"github.com/sebastos1/aa/internal/tracker/state"
	"github.com/sebastos1/aa/internal/tracker/stream"
	"github.com/sebastos1/aa/internal/tracker/view"
)

const (
	routeIndex          = "/"
	routeState          = "/api/state"
	routeCoopMode       = "/prefs/coop-mode"
	routeTestFlag       = "/prefs/test-flag"
	routeSelectedPlayer = "/prefs/selected-player"
	routeLive           = "/live"

	recentDiagnostics = 10
)

// PreferenceStore is the preference surface the dashboard mutates.
type PreferenceStore interface {
	Get() prefs.Preferences
	ToggleCoopMode(ctx context.Context) prefs.Preferences
	ToggleTestFlag(ctx context.Context) prefs.Preferences
	SetSelectedPlayer(ctx context.Context, uuid string) prefs.Preferences
	Subscribe(fn func(prefs.Preferences)) state.Subscription
}

// SelectionSource resolves the selected player.
type SelectionSource interface {
	Selection() view.Selection
}

// StreamStatus reports the event stream state and counters.
type StreamStatus interface {
	State() stream.State
	Stats() stream.Stats
}

// DiagnosticLog lists recent diagnostics, oldest first.
type DiagnosticLog interface {
	Events() []diag.Event
}

// Deps are the dashboard's collaborators. Stream and Diagnostics are
// optional.
type Deps struct {
	Mirror      state.Reader
	Static      *state.Static
	Preferences PreferenceStore
	Selection   SelectionSource
	Stream      StreamStatus
	Diagnostics DiagnosticLog
}

// Server is the dashboard HTTP handler.
type Server struct {
	deps  Deps
	mux   *http.ServeMux
	hub   *hub
	stops []state.Subscription
}

// New builds the dashboard and subscribes it to state changes.
func New(deps Deps) *Server {
	if deps.Static == nil {
		deps.Static = state.NewStatic()
	}
	s := &Server{deps: deps, mux: http.NewServeMux(), hub: newHub()}
	s.registerRoutes()

	if deps.Mirror != nil {
		s.stops = append(s.stops, deps.Mirror.Subscribe(func(change state.Change) {
			s.hub.broadcastJSON(liveMessage{Type: liveTypeState, Version: change.Version, Players: change.Players})
		}))
	}
	if deps.Preferences != nil {
		s.stops = append(s.stops, deps.Preferences.Subscribe(func(p prefs.Preferences) {
			s.hub.broadcastJSON(liveMessage{Type: liveTypePreferences, Preferences: &p})
		}))
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close detaches from state and disconnects live clients.
func (s *Server) Close() {
	for _, stop := range s.stops {
		stop()
	}
	s.stops = nil
	s.hub.close()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc(http.MethodGet+" "+routeIndex+"{$}", s.handleIndex)
	s.mux.HandleFunc(http.MethodGet+" "+routeState, s.handleState)
	s.mux.HandleFunc(http.MethodPost+" "+routeCoopMode, s.handleToggleCoopMode)
	s.mux.HandleFunc(http.MethodPost+" "+routeTestFlag, s.handleToggleTestFlag)
	s.mux.HandleFunc(http.MethodPost+" "+routeSelectedPlayer, s.handleSelectPlayer)
	s.mux.HandleFunc(http.MethodGet+" "+routeLive, s.handleLive)
}

func (s *Server) snapshot(includeDiagnostics bool) StateView {
	out := StateView{
		World:        s.deps.Static.WorldName(),
		Advancements: len(s.deps.Static.Advancements()),
		Stream:       "disabled",
		Players:      []PlayerView{},
	}
	if s.deps.Mirror != nil {
		version, players, progress := s.deps.Mirror.Snapshot()
		out.Version = version
		out.Progress = progress
		out.Players = buildPlayerViews(players, progress)
	}
	if s.deps.Preferences != nil {
		out.Preferences = s.deps.Preferences.Get()
	}
	if s.deps.Selection != nil {
		out.Selected = selectedView(s.deps.Selection.Selection(), out.Progress)
	}
	if s.deps.Stream != nil {
		out.Stream = s.deps.Stream.State().String()
		stats := s.deps.Stream.Stats()
		out.StreamStats = &stats
	}
	if includeDiagnostics && s.deps.Diagnostics != nil {
		out.Diagnostics = diagnosticViews(s.deps.Diagnostics.Events(), recentDiagnostics)
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	templ.Handler(page(s.snapshot(true), printerFor(r))).ServeHTTP(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot(r.URL.Query().Get("diagnostics") == "1"))
}

func (s *Server) handleToggleCoopMode(w http.ResponseWriter, r *http.Request) {
	if !s.requirePreferences(w) {
		return
	}
	s.respondPreferences(w, r, s.deps.Preferences.ToggleCoopMode(r.Context()))
}

func (s *Server) handleToggleTestFlag(w http.ResponseWriter, r *http.Request) {
	if !s.requirePreferences(w) {
		return
	}
	s.respondPreferences(w, r, s.deps.Preferences.ToggleTestFlag(r.Context()))
}

func (s *Server) handleSelectPlayer(w http.ResponseWriter, r *http.Request) {
	if !s.requirePreferences(w) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	query := strings.TrimSpace(r.PostForm.Get("player"))
	if query == "" {
		s.respondPreferences(w, r, s.deps.Preferences.SetSelectedPlayer(r.Context(), ""))
		return
	}
	if s.deps.Mirror == nil {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	match, ok := view.FindPlayer(s.deps.Mirror.Players(), query)
	if !ok {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	s.respondPreferences(w, r, s.deps.Preferences.SetSelectedPlayer(r.Context(), match.UUID))
}

func (s *Server) requirePreferences(w http.ResponseWriter) bool {
	if s.deps.Preferences == nil {
		http.Error(w, "preferences are not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// respondPreferences answers JSON clients with the new preferences and
// redirects form posts back to the page.
func (s *Server) respondPreferences(w http.ResponseWriter, r *http.Request, p prefs.Preferences) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, p)
		return
	}
	http.Redirect(w, r, routeIndex, http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
