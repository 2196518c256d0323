package dashboard

import (
	"net/http"
	"strings"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var (
	supportedTags = []language.Tag{language.AmericanEnglish, language.BrazilianPortuguese}
	tagMatcher    = language.NewMatcher(supportedTags)
)

const (
	msgPlayersTracked = "%d players tracked"
	msgAdvancements   = "%d advancements"
	msgCompleted      = "%d completed"
	msgCoopMode       = "Co-op mode"
	msgTestFlag       = "Test flag"
	msgSelected       = "Selected player"
	msgNone           = "None"
	msgStream         = "Stream: %s"
	msgDiagnostics    = "Recent diagnostics"
	msgToggle         = "Toggle"
	msgSelect         = "Select"
)

func init() {
	en := language.AmericanEnglish
	for _, key := range []string{msgCoopMode, msgTestFlag, msgSelected, msgNone, msgStream, msgDiagnostics, msgToggle, msgSelect} {
		_ = message.SetString(en, key, key)
	}
	_ = message.Set(en, msgPlayersTracked, pluralCases("%d player tracked", "%d players tracked"))
	_ = message.Set(en, msgAdvancements, pluralCases("%d advancement", "%d advancements"))
	_ = message.SetString(en, msgCompleted, "%d completed")

	pt := language.BrazilianPortuguese
	_ = message.Set(pt, msgPlayersTracked, pluralCases("%d jogador acompanhado", "%d jogadores acompanhados"))
	_ = message.Set(pt, msgAdvancements, pluralCases("%d conquista", "%d conquistas"))
	_ = message.SetString(pt, msgCompleted, "%d concluídas")
	_ = message.SetString(pt, msgCoopMode, "Modo cooperativo")
	_ = message.SetString(pt, msgTestFlag, "Sinalizador de teste")
	_ = message.SetString(pt, msgSelected, "Jogador selecionado")
	_ = message.SetString(pt, msgNone, "Nenhum")
	_ = message.SetString(pt, msgStream, "Fluxo: %s")
	_ = message.SetString(pt, msgDiagnostics, "Diagnósticos recentes")
	_ = message.SetString(pt, msgToggle, "Alternar")
	_ = message.SetString(pt, msgSelect, "Selecionar")
}

// resolveTag picks the best supported language for the request.
func resolveTag(r *http.Request) language.Tag {
	if r == nil {
		return supportedTags[0]
	}
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return supportedTags[0]
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return supportedTags[0]
	}
	_, index, _ := tagMatcher.Match(tags...)
	return supportedTags[index]
}

func printerFor(r *http.Request) *message.Printer {
	return message.NewPrinter(resolveTag(r))
}

func pluralCases(one, other string) catalog.Message {
	return plural.Selectf(1, "%d", "one", one, "other", other)
}
