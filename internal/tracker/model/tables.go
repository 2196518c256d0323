package model

// PlayerTable maps a player UUID to its latest snapshot.
type PlayerTable map[UUID]Player

// ProgressTable maps an advancement key to the players holding progress on it.
type ProgressTable map[AdvancementKey]map[UUID]ProgressDetail

// Clone deep-copies the table.
func (t PlayerTable) Clone() PlayerTable {
	out := make(PlayerTable, len(t))
	for uuid, player := range t {
		out[uuid] = player.Clone()
	}
	return out
}

// Clone deep-copies the table, including empty per-key maps.
func (t ProgressTable) Clone() ProgressTable {
	out := make(ProgressTable, len(t))
	for key, holders := range t {
		copied := make(map[UUID]ProgressDetail, len(holders))
		for uuid, detail := range holders {
			copied[uuid] = detail.Clone()
		}
		out[key] = copied
	}
	return out
}

// ForPlayer collects the progress entries held by one player.
func (t ProgressTable) ForPlayer(uuid UUID) map[AdvancementKey]ProgressDetail {
	out := make(map[AdvancementKey]ProgressDetail)
	for key, holders := range t {
		if detail, ok := holders[uuid]; ok {
			out[key] = detail.Clone()
		}
	}
	return out
}
