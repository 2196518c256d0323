package dashboard

import (
	"embed"
	"html/template"

	"github.com/a-h/templ"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/page.html"))

// pageView is the localized data the page template renders.
type pageView struct {
	Title            string
	Players          string
	Advancements     string
	Stream           string
	Toggles          []toggleView
	ToggleLabel      string
	SelectAction     string
	SelectedLabel    string
	SelectedName     string
	SelectLabel      string
	Selected         *rowView
	NoneLabel        string
	Rows             []rowView
	DiagnosticsLabel string
	Diagnostics      []DiagnosticView
}

type toggleView struct {
	Action string
	Label  string
	On     bool
}

type rowView struct {
	UUID      string
	Name      string
	AvatarURL string
	Completed string
}

// page renders the dashboard document.
func page(v StateView, p *message.Printer) templ.Component {
	return templ.FromGoHTML(pageTemplate, newPageView(v, p))
}

func newPageView(v StateView, p *message.Printer) pageView {
	title := v.World
	if title == "" {
		title = "Advancement tracker"
	}
	out := pageView{
		Title:        title,
		Players:      p.Sprintf(msgPlayersTracked, len(v.Players)),
		Advancements: p.Sprintf(msgAdvancements, v.Advancements),
		Stream:       p.Sprintf(msgStream, v.Stream),
		Toggles: []toggleView{
			{Action: routeCoopMode, Label: p.Sprintf(msgCoopMode), On: v.Preferences.CoopMode},
			{Action: routeTestFlag, Label: p.Sprintf(msgTestFlag), On: v.Preferences.TestFlag},
		},
		ToggleLabel:      p.Sprintf(msgToggle),
		SelectAction:     routeSelectedPlayer,
		SelectedLabel:    p.Sprintf(msgSelected),
		SelectLabel:      p.Sprintf(msgSelect),
		NoneLabel:        p.Sprintf(msgNone),
		Rows:             make([]rowView, 0, len(v.Players)),
		DiagnosticsLabel: p.Sprintf(msgDiagnostics),
		Diagnostics:      v.Diagnostics,
	}
	if v.Selected != nil {
		row := newRowView(*v.Selected, p)
		out.Selected = &row
		out.SelectedName = row.Name
	}
	for _, player := range v.Players {
		out.Rows = append(out.Rows, newRowView(player, p))
	}
	return out
}

func newRowView(player PlayerView, p *message.Printer) rowView {
	return rowView{
		UUID:      player.UUID,
		Name:      player.Name,
		AvatarURL: player.AvatarURL,
		Completed: p.Sprintf(msgCompleted, player.Completed),
	}
}
