package view

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sebastos1/aa/internal/tracker/model"
)

// Match is a player resolved by FindPlayer.
type Match struct {
	UUID     model.UUID
	Name     string
	Distance int
}

// FindPlayer resolves query to a player by exact UUID, then by
// case-insensitive name, then by the closest name within a small edit
// distance. Ties go to the lexically smallest UUID.
func FindPlayer(players model.PlayerTable, query string) (Match, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Match{}, false
	}
	if player, ok := players[query]; ok {
		return Match{UUID: query, Name: player.Summary().Name}, true
	}

	uuids := make([]model.UUID, 0, len(players))
	for uuid := range players {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)

	needle := strings.ToLower(query)
	best := Match{Distance: maxDistance(needle) + 1}
	for _, uuid := range uuids {
		name := players[uuid].Summary().Name
		if name == "" {
			continue
		}
		distance := levenshtein.ComputeDistance(needle, strings.ToLower(name))
		if distance < best.Distance {
			best = Match{UUID: uuid, Name: name, Distance: distance}
		}
	}
	if best.UUID == "" {
		return Match{}, false
	}
	return best, true
}

func maxDistance(needle string) int {
	if n := len([]rune(needle)) / 3; n > 2 {
		return n
	}
	return 2
}
