package prefs

import (
	"context"

	"github.com/sebastos1/aa/internal/tracker/storage"
)

// KVStore adapts a keyed preference table to a DurableStore.
type KVStore struct {
	store storage.PreferenceStore
	key   string
}

// NewKVStore stores payloads under Key in store.
func NewKVStore(store storage.PreferenceStore) *KVStore {
	return &KVStore{store: store, key: Key}
}

// Name implements DurableStore.
func (k *KVStore) Name() string { return "sqlite" }

// Available reports whether a backing table is configured.
func (k *KVStore) Available() bool { return k != nil && k.store != nil }

// Load implements DurableStore.
func (k *KVStore) Load(ctx context.Context) (Record, bool, error) {
	record, found, err := k.store.GetPreference(ctx, k.key)
	if err != nil || !found {
		return Record{}, false, err
	}
	return Record{Payload: record.Payload, UpdatedAt: record.UpdatedAt}, true, nil
}

// Save implements DurableStore.
func (k *KVStore) Save(ctx context.Context, payload []byte) error {
	return k.store.PutPreference(ctx, k.key, payload)
}
