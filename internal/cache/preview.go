package cache

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
)

// PreviewFromReport projects a report onto its preview shape.
func PreviewFromReport(r entity.HealthReport, cachedAt int64) entity.ReportPreview {
	status := r.Status
	if !status.Valid() {
		status = constants.ReportStatusProcessing
	}
	return entity.ReportPreview{
		ID:             r.ID,
		PetID:          r.PetID,
		Title:          r.Title,
		ReportType:     r.ReportType,
		ReportDate:     r.ReportDate,
		ReportLabel:    r.ReportLabel,
		Diagnosis:      r.Diagnosis,
		ImageURL:       r.ImageURL,
		AIAnalysis:     r.AIAnalysis,
		Status:         status,
		CachedAt:       cachedAt,
		HasAIDiagnosis: r.HasAIAnalysis(),
	}
}

// CachePreview upserts the preview of report. Reports lacking an id, title,
// type or date are ignored.
func (m *Manager) CachePreview(petID string, report entity.HealthReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cachePreview(petID, report)
}

func (m *Manager) cachePreview(petID string, r entity.HealthReport) {
	if r.ID == "" || r.Title == "" || r.ReportType == "" || r.ReportDate == "" {
		m.logger.Debug("cache.preview.skipped", "pet_id", petID, "report_id", r.ID)
		return
	}
	if m.foreign(petID, r) {
		return
	}
	if r.PetID == "" {
		r.PetID = petID
	}
	next := PreviewFromReport(r, m.now().UnixMilli())
	if prev, ok := m.readPreview(previewKey(petID, r.ID)); ok {
		next = mergePreview(prev, next)
	}
	m.setJSON(previewKey(petID, r.ID), next, tierPreview)
}

// mergePreview applies next over prev. Status only leaves processing, and an
// attached AI diagnosis is never dropped.
func mergePreview(prev, next entity.ReportPreview) entity.ReportPreview {
	if prev.Status.IsTerminal() {
		next.Status = prev.Status
	}
	if prev.HasAIDiagnosis {
		next.HasAIDiagnosis = true
		if next.AIAnalysis == nil {
			next.AIAnalysis = prev.AIAnalysis
		}
	}
	return next
}

// GetPreviews returns the pet's previews, newest report date first.
// Expired and unreadable entries are evicted along the way.
func (m *Manager) GetPreviews(petID string) []entity.ReportPreview {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := m.scanPreviews(petID)
	out := make([]entity.ReportPreview, 0, len(found))
	for _, p := range found {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportDate != out[j].ReportDate {
			return out[i].ReportDate > out[j].ReportDate
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateDiagnosis attaches an AI analysis to an existing preview and marks it
// completed. Absent previews are left absent, as are empty analyses. A cached list entry for the
// same report is patched in place.
func (m *Manager) UpdateDiagnosis(petID, reportID, analysis string) {
	if strings.TrimSpace(analysis) == "" {
		m.logger.Debug("cache.diagnosis.empty", "pet_id", petID, "report_id", reportID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := previewKey(petID, reportID)
	p, ok := m.readPreview(key)
	if !ok {
		m.logger.Debug("cache.diagnosis.no_preview", "pet_id", petID, "report_id", reportID)
		return
	}
	p.AIAnalysis = &analysis
	p.HasAIDiagnosis = true
	if p.Status != constants.ReportStatusFailed {
		p.Status = constants.ReportStatusCompleted
	}
	p.CachedAt = m.now().UnixMilli()
	m.setJSON(key, p, tierPreview)

	if l, ok := m.readList(petID); ok {
		for i := range l.Data {
			if l.Data[i].ID == reportID {
				l.Data[i].AIAnalysis = &analysis
				l.Data[i].Status = p.Status
				m.writeList(petID, l)
				break
			}
		}
	}
}

func (m *Manager) readPreview(key string) (entity.ReportPreview, bool) {
	raw, ok := m.get(key, tierPreview)
	if !ok {
		return entity.ReportPreview{}, false
	}
	return m.decodePreview(key, raw)
}

func (m *Manager) decodePreview(key, raw string) (entity.ReportPreview, bool) {
	var p entity.ReportPreview
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ID == "" {
		m.logger.Warn("cache.read.corrupt", "key", key, "error", err)
		m.metrics.CacheLookup(tierPreview, "corrupt")
		m.remove(key, tierPreview)
		return entity.ReportPreview{}, false
	}
	if !m.fresh(p.CachedAt, m.previewTTL) {
		m.metrics.CacheLookup(tierPreview, "expired")
		m.remove(key, tierPreview)
		return entity.ReportPreview{}, false
	}
	m.metrics.CacheLookup(tierPreview, "hit")
	return p, true
}

// scanPreviews loads every live preview of petID keyed by storage key.
func (m *Manager) scanPreviews(petID string) map[string]entity.ReportPreview {
	out := make(map[string]entity.ReportPreview)
	for _, key := range m.petPreviewKeys(petID) {
		raw, ok := m.get(key, tierPreview)
		if !ok {
			continue
		}
		p, ok := m.decodePreview(key, raw)
		if !ok || p.PetID != petID {
			continue
		}
		out[key] = p
	}
	return out
}

func (m *Manager) petPreviewKeys(petID string) []string {
	keys, err := m.store.Keys()
	if err != nil {
		m.logger.Error("cache.keys.failed", "error", err)
		return nil
	}
	prefix := petPreviewPrefix(petID)
	var out []string
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out
}

// belongsTo reports whether the preview at key is petID's. Unreadable
// entries count as belonging so they get cleaned up.
func (m *Manager) belongsTo(key, petID string) bool {
	raw, ok, err := m.store.Get(key)
	if err != nil || !ok {
		return false
	}
	var owner struct {
		PetID string `json:"pet_id"`
	}
	if err := json.Unmarshal([]byte(raw), &owner); err != nil {
		return true
	}
	return owner.PetID == petID
}
