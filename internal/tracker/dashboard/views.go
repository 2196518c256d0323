package dashboard

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/sebastos1/aa/internal/tracker/diag"
	"github.com/sebastos1/aa/internal/tracker/model"
	"github.com/sebastos1/aa/internal/tracker/prefs"
	"github.com/sebastos1/aa/internal/tracker/stream"
	"github.com/sebastos1/aa/internal/tracker/view"
)

// StateView is the JSON document served at /api/state.
type StateView struct {
	World        string              `json:"world"`
	Version      uint64              `json:"version"`
	Stream       string              `json:"stream"`
	StreamStats  *stream.Stats       `json:"streamStats,omitempty"`
	Advancements int                 `json:"advancements"`
	Preferences  prefs.Preferences   `json:"preferences"`
	Selected     *PlayerView         `json:"selected"`
	Players      []PlayerView        `json:"players"`
	Progress     model.ProgressTable `json:"progress"`
	Diagnostics  []DiagnosticView    `json:"diagnostics,omitempty"`
}

// PlayerView is one player row.
type PlayerView struct {
	UUID      model.UUID   `json:"uuid"`
	Name      string       `json:"name"`
	AvatarURL string       `json:"avatarUrl,omitempty"`
	Completed int          `json:"completed"`
	Player    model.Player `json:"player"`
}

// DiagnosticView is one recent diagnostic.
type DiagnosticView struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Severity  string    `json:"severity"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
}

func buildPlayerViews(players model.PlayerTable, progress model.ProgressTable) []PlayerView {
	out := make([]PlayerView, 0, len(players))
	for uuid, player := range players {
		out = append(out, playerView(uuid, player, progress))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

func playerView(uuid model.UUID, player model.Player, progress model.ProgressTable) PlayerView {
	summary := player.Summary()
	name := summary.Name
	if name == "" {
		name = uuid
	}
	return PlayerView{
		UUID:      uuid,
		Name:      name,
		AvatarURL: summary.AvatarURL,
		Completed: countCompleted(progress.ForPlayer(uuid)),
		Player:    player,
	}
}

// countCompleted counts entries whose detail reports done=true.
func countCompleted(entries map[model.AdvancementKey]model.ProgressDetail) int {
	count := 0
	for _, detail := range entries {
		var probe struct {
			Done bool `json:"done"`
		}
		if err := json.Unmarshal(detail, &probe); err == nil && probe.Done {
			count++
		}
	}
	return count
}

func selectedView(sel view.Selection, progress model.ProgressTable) *PlayerView {
	if !sel.Found {
		return nil
	}
	pv := playerView(sel.UUID, sel.Player, progress)
	return &pv
}

func diagnosticViews(events []diag.Event, limit int) []DiagnosticView {
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]DiagnosticView, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		evt := events[i]
		out = append(out, DiagnosticView{
			Timestamp: evt.Timestamp,
			Kind:      string(evt.Kind),
			Severity:  string(evt.Severity),
			Code:      string(evt.Code),
			Message:   evt.Message,
		})
	}
	return out
}
