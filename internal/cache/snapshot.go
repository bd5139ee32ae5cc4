package cache

// Snapshot is the raw stored state of one pet's cache keys, taken before an
// optimistic mutation so it can be reapplied verbatim on rollback.
type Snapshot struct {
	petID   string
	entries map[string]string
}

// PetID returns the pet the snapshot was taken for.
func (s Snapshot) PetID() string { return s.petID }

// Snapshot captures the pet's list and preview keys as stored.
func (m *Manager) Snapshot(petID string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{petID: petID, entries: make(map[string]string)}
	keys := append([]string{listKey(petID)}, m.petPreviewKeys(petID)...)
	for _, key := range keys {
		if key != listKey(petID) && !m.belongsTo(key, petID) {
			continue
		}
		raw, ok, err := m.store.Get(key)
		if err != nil {
			m.logger.Warn("cache.snapshot.read_failed", "key", key, "error", err)
			continue
		}
		if ok {
			snap.entries[key] = raw
		}
	}
	return snap
}

// Restore replaces the pet's current keys with the snapshot contents.
func (m *Manager) Restore(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remove(listKey(snap.petID), tierList)
	for _, key := range m.petPreviewKeys(snap.petID) {
		if _, kept := snap.entries[key]; kept || m.belongsTo(key, snap.petID) {
			m.remove(key, tierPreview)
		}
	}
	for key, raw := range snap.entries {
		if err := m.store.Set(key, raw); err != nil {
			m.logger.Error("cache.restore.failed", "key", key, "error", err)
			m.metrics.CacheWriteFailed(tierPreview)
		}
	}
	m.logger.Info("cache.restored", "pet_id", snap.petID, "keys", len(snap.entries))
}
