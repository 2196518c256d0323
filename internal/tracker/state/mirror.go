package state

import (
	"sort"
	"sync"

	"github.com/sebastos1/aa/internal/tracker/model"
)

// Change describes one committed Mirror transaction.
type Change struct {
	// Version increases by one per committed transaction.
	Version uint64
	// Players lists the UUIDs touched by the transaction, sorted. A reset
	// through Tx.Replace reports every UUID present afterwards.
	Players []model.UUID
}

// Reader is the read-only view of the Mirror handed to everything except the
// merge engine and the bootstrap loader.
type Reader interface {
	Players() model.PlayerTable
	Player(uuid model.UUID) (model.Player, bool)
	Progress() model.ProgressTable
	PlayerProgress(uuid model.UUID) map[model.AdvancementKey]model.ProgressDetail
	Version() uint64
	Snapshot() (uint64, model.PlayerTable, model.ProgressTable)
	Subscribe(fn func(Change)) Subscription
}

// Mirror holds the PlayerTable and ProgressTable under a single lock so a
// transaction touching both is observed atomically.
type Mirror struct {
	publish  sync.Mutex
	mu       sync.RWMutex
	players  model.PlayerTable
	progress model.ProgressTable
	version  uint64
	subs     subscribers[Change]
}

// NewMirror creates an empty Mirror.
func NewMirror() *Mirror {
	return &Mirror{
		players:  model.PlayerTable{},
		progress: model.ProgressTable{},
	}
}

// Tx is the mutation handle passed to Mirror.Update. It is only valid for
// the duration of the callback.
type Tx struct {
	m       *Mirror
	touched map[model.UUID]struct{}
}

// SetPlayer replaces the snapshot stored for uuid.
func (tx *Tx) SetPlayer(uuid model.UUID, player model.Player) {
	tx.m.players[uuid] = player.Clone()
	tx.touch(uuid)
}

// ProgressKeys returns every advancement key currently in the table.
func (tx *Tx) ProgressKeys() []model.AdvancementKey {
	keys := make([]model.AdvancementKey, 0, len(tx.m.progress))
	for key := range tx.m.progress {
		keys = append(keys, key)
	}
	return keys
}

// RemoveProgress drops uuid's entry under key, if present. The per-key map
// is kept even when it becomes empty.
func (tx *Tx) RemoveProgress(key model.AdvancementKey, uuid model.UUID) {
	holders, ok := tx.m.progress[key]
	if !ok {
		return
	}
	if _, ok := holders[uuid]; ok {
		delete(holders, uuid)
		tx.touch(uuid)
	}
}

// SetProgress stores detail for uuid under key, creating the key's map when
// absent.
func (tx *Tx) SetProgress(key model.AdvancementKey, uuid model.UUID, detail model.ProgressDetail) {
	holders, ok := tx.m.progress[key]
	if !ok {
		holders = make(map[model.UUID]model.ProgressDetail)
		tx.m.progress[key] = holders
	}
	holders[uuid] = detail.Clone()
	tx.touch(uuid)
}

// Replace resets both tables to copies of the given values.
func (tx *Tx) Replace(players model.PlayerTable, progress model.ProgressTable) {
	tx.m.players = players.Clone()
	tx.m.progress = progress.Clone()
	for uuid := range tx.m.players {
		tx.touch(uuid)
	}
	for _, holders := range tx.m.progress {
		for uuid := range holders {
			tx.touch(uuid)
		}
	}
}

func (tx *Tx) touch(uuid model.UUID) {
	tx.touched[uuid] = struct{}{}
}

// Update runs fn as one transaction and notifies subscribers once it
// commits. Readers never observe a partially applied transaction.
// Subscribers must not call Update synchronously.
func (m *Mirror) Update(fn func(tx *Tx)) Change {
	m.publish.Lock()
	defer m.publish.Unlock()

	change := m.commit(fn)
	m.subs.notify(change)
	return change
}

func (m *Mirror) commit(fn func(tx *Tx)) Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &Tx{m: m, touched: make(map[model.UUID]struct{})}
	fn(tx)
	m.version++
	return Change{Version: m.version, Players: sortedUUIDs(tx.touched)}
}

// Players returns a copy of the PlayerTable.
func (m *Mirror) Players() model.PlayerTable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.players.Clone()
}

// Player returns a copy of one player's snapshot.
func (m *Mirror) Player(uuid model.UUID) (model.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	player, ok := m.players[uuid]
	if !ok {
		return nil, false
	}
	return player.Clone(), true
}

// Progress returns a copy of the ProgressTable.
func (m *Mirror) Progress() model.ProgressTable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress.Clone()
}

// PlayerProgress returns the entries held by one player across all keys.
func (m *Mirror) PlayerProgress(uuid model.UUID) map[model.AdvancementKey]model.ProgressDetail {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress.ForPlayer(uuid)
}

// Version returns the number of committed transactions.
func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Snapshot returns the version and copies of both tables, all read at the
// same commit.
func (m *Mirror) Snapshot() (uint64, model.PlayerTable, model.ProgressTable) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version, m.players.Clone(), m.progress.Clone()
}

// Subscribe registers fn for future commits. Unlike Observable it does not
// replay the current state; callers read it through the Reader methods.
func (m *Mirror) Subscribe(fn func(Change)) Subscription {
	if fn == nil {
		return func() {}
	}
	id := func() uint64 {
		m.publish.Lock()
		defer m.publish.Unlock()
		return m.subs.add(fn)
	}()

	var once sync.Once
	return func() { once.Do(func() { m.subs.remove(id) }) }
}

func sortedUUIDs(set map[model.UUID]struct{}) []model.UUID {
	out := make([]model.UUID, 0, len(set))
	for uuid := range set {
		out = append(out, uuid)
	}
	sort.Strings(out)
	return out
}

var _ Reader = (*Mirror)(nil)
