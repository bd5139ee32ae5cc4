// Package cache keeps a per-pet report list and per-report previews in a
// local key-value store so report lists render before the remote fetch returns.
package cache

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/kv"
	"github.com/joseph-ayodele/pet-health-tracker/internal/metrics"
)

const (
	DefaultListTTL    = 24 * time.Hour
	DefaultPreviewTTL = 7 * 24 * time.Hour
)

type cachedList struct {
	Data      []entity.HealthReport `json:"data"`
	Timestamp int64                 `json:"timestamp"` // unix ms
}

// Manager is the only writer of the cache keys. Every operation runs to
// completion under one lock. Storage failures are logged and swallowed.
type Manager struct {
	mu         sync.Mutex
	store      kv.Store
	logger     *slog.Logger
	metrics    *metrics.Collector
	listTTL    time.Duration
	previewTTL time.Duration
	now        func() time.Time
}

type Option func(*Manager)

func WithListTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.listTTL = d
		}
	}
}

func WithPreviewTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.previewTTL = d
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

func NewManager(store kv.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:      store,
		logger:     logger,
		listTTL:    DefaultListTTL,
		previewTTL: DefaultPreviewTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// GetList returns the cached report list if present and unexpired.
func (m *Manager) GetList(petID string) ([]entity.HealthReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.readList(petID)
	if !ok {
		return nil, false
	}
	return cloneReports(l.Data), true
}

// SetList replaces the cached list, resets its timestamp and refreshes the
// preview of every report. Previews no longer in the list are dropped unless
// still processing, since an upload may not be visible remotely yet.
func (m *Manager) SetList(petID string, reports []entity.HealthReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := make([]entity.HealthReport, 0, len(reports))
	for _, r := range reports {
		if !m.foreign(petID, r) {
			owned = append(owned, r)
		}
	}
	reports = owned
	m.writeList(petID, cachedList{Data: cloneReports(reports), Timestamp: m.now().UnixMilli()})

	keep := make(map[string]struct{}, len(reports))
	for _, r := range reports {
		keep[r.ID] = struct{}{}
		m.cachePreview(petID, r)
	}
	for key, p := range m.scanPreviews(petID) {
		if _, ok := keep[p.ID]; ok || p.Status == constants.ReportStatusProcessing {
			continue
		}
		m.remove(key, tierPreview)
	}
	m.logger.Debug("cache.list.set", "pet_id", petID, "reports", len(reports))
}

// AddReport places report first in the cached list, replacing any entry with
// the same id, and upserts its preview. A missing or expired list is started
// afresh; an existing list keeps its timestamp.
func (m *Manager) AddReport(petID string, report entity.HealthReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.foreign(petID, report) {
		return
	}
	l, ok := m.readList(petID)
	if !ok {
		l = cachedList{Timestamp: m.now().UnixMilli()}
	}
	l.Data = prepend(withoutID(l.Data, report.ID), report)
	m.writeList(petID, l)
	m.cachePreview(petID, report)
}

// RemoveReport drops reportID from both tiers.
func (m *Manager) RemoveReport(petID, reportID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeReport(petID, reportID)
}

func (m *Manager) removeReport(petID, reportID string) {
	if l, ok := m.readList(petID); ok {
		l.Data = withoutID(l.Data, reportID)
		m.writeList(petID, l)
	}
	m.remove(previewKey(petID, reportID), tierPreview)
}

// Clear wipes one pet's list and previews.
func (m *Manager) Clear(petID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remove(listKey(petID), tierList)
	for _, key := range m.petPreviewKeys(petID) {
		if m.belongsTo(key, petID) {
			m.remove(key, tierPreview)
		}
	}
	m.logger.Info("cache.cleared", "pet_id", petID)
}

// ClearAll wipes every key this manager owns and leaves other keys alone.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.store.Keys()
	if err != nil {
		m.logger.Error("cache.keys.failed", "error", err)
		return
	}
	n := 0
	for _, key := range keys {
		if ownedKey(key) {
			m.remove(key, "")
			n++
		}
	}
	m.logger.Info("cache.cleared_all", "keys", n)
}

// ApplyRemoteEvent folds one pushed or refreshed record into the cache.
// It is the single reconciliation path for the realtime feed and local writes.
func (m *Manager) ApplyRemoteEvent(petID string, ev entity.RemoteEvent) {
	if ev.Record.PetID != "" && ev.Record.PetID != petID {
		m.logger.Warn("cache.event.pet_mismatch", "pet_id", petID, "record_pet_id", ev.Record.PetID, "report_id", ev.Record.ID)
		return
	}
	if ev.Record.ID == "" {
		m.logger.Warn("cache.event.missing_id", "pet_id", petID, "kind", ev.Kind)
		return
	}
	m.metrics.RealtimeEvent(string(ev.Kind))

	switch ev.Kind {
	case entity.EventInsert:
		m.AddReport(petID, ev.Record)
	case entity.EventUpdate:
		m.mu.Lock()
		defer m.mu.Unlock()
		if l, ok := m.readList(petID); ok {
			l.Data = replaceOrPrepend(l.Data, ev.Record)
			m.writeList(petID, l)
		}
		m.cachePreview(petID, ev.Record)
	case entity.EventDelete:
		m.RemoveReport(petID, ev.Record.ID)
	default:
		m.logger.Warn("cache.event.unknown_kind", "pet_id", petID, "kind", ev.Kind)
	}
}

// foreign reports whether r belongs to a pet other than petID.
func (m *Manager) foreign(petID string, r entity.HealthReport) bool {
	if r.PetID == "" || r.PetID == petID {
		return false
	}
	m.logger.Warn("cache.report.pet_mismatch", "pet_id", petID, "record_pet_id", r.PetID, "report_id", r.ID)
	return true
}

func (m *Manager) readList(petID string) (cachedList, bool) {
	key := listKey(petID)
	raw, ok := m.get(key, tierList)
	if !ok {
		return cachedList{}, false
	}
	var l cachedList
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		m.logger.Warn("cache.read.corrupt", "key", key, "error", err)
		m.metrics.CacheLookup(tierList, "corrupt")
		m.remove(key, tierList)
		return cachedList{}, false
	}
	if !m.fresh(l.Timestamp, m.listTTL) {
		m.metrics.CacheLookup(tierList, "expired")
		m.remove(key, tierList)
		return cachedList{}, false
	}
	m.metrics.CacheLookup(tierList, "hit")
	if l.Data == nil {
		l.Data = []entity.HealthReport{}
	}
	return l, true
}

func (m *Manager) writeList(petID string, l cachedList) {
	m.setJSON(listKey(petID), l, tierList)
}

func (m *Manager) fresh(ts int64, ttl time.Duration) bool {
	return m.now().UnixMilli()-ts < ttl.Milliseconds()
}

// get treats backend errors as a miss.
func (m *Manager) get(key, tier string) (string, bool) {
	raw, ok, err := m.store.Get(key)
	if err != nil {
		m.logger.Warn("cache.read.failed", "key", key, "error", err)
		m.metrics.CacheLookup(tier, "error")
		return "", false
	}
	if !ok {
		m.metrics.CacheLookup(tier, "miss")
	}
	return raw, ok
}

func (m *Manager) setJSON(key string, v any, tier string) {
	b, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("cache.write.encode_failed", "key", key, "error", err)
		m.metrics.CacheWriteFailed(tier)
		return
	}
	if err := m.store.Set(key, string(b)); err != nil {
		m.logger.Error("cache.write.failed", "key", key, "bytes", len(b), "error", err)
		m.metrics.CacheWriteFailed(tier)
	}
}

func (m *Manager) remove(key, tier string) {
	if err := m.store.Remove(key); err != nil {
		m.logger.Warn("cache.remove.failed", "key", key, "error", err)
		if tier != "" {
			m.metrics.CacheWriteFailed(tier)
		}
	}
}

func cloneReports(in []entity.HealthReport) []entity.HealthReport {
	out := make([]entity.HealthReport, len(in))
	copy(out, in)
	return out
}

func withoutID(in []entity.HealthReport, id string) []entity.HealthReport {
	out := make([]entity.HealthReport, 0, len(in))
	for _, r := range in {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func prepend(in []entity.HealthReport, r entity.HealthReport) []entity.HealthReport {
	return append([]entity.HealthReport{r}, in...)
}

func replaceOrPrepend(in []entity.HealthReport, r entity.HealthReport) []entity.HealthReport {
	for i := range in {
		if in[i].ID == r.ID {
			out := cloneReports(in)
			out[i] = r
			return out
		}
	}
	return prepend(in, r)
}
