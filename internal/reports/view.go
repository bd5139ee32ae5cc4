package reports

import (
	"context"

	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
)

// Source says which tier a View was served from.
type Source string

const (
	SourceCache   Source = "cache"
	SourcePreview Source = "preview"
	SourceRemote  Source = "remote"
)

// View is one rendering of a pet's report list.
type View struct {
	PetID   string
	Reports []entity.HealthReport
	Source  Source
	// Stale is set when a cached view was kept because the remote refresh failed.
	Stale bool
}

// RenderFunc receives each view as it becomes available.
type RenderFunc func(View)

// View renders cached data first and then the remote refresh.
//
// A fresh non-empty cached list is rendered immediately; otherwise cached
// previews are rendered as minimal reports. The remote list is then fetched, cached and
// rendered. If the fetch fails after a fallback was rendered, the failure is
// logged and the last view is rendered again marked stale.
func (s *Service) View(ctx context.Context, petID string, render RenderFunc) error {
	log := common.LoggerFromContext(common.WithPetID(ctx, petID), s.logger)
	if render == nil {
		render = func(View) {}
	}

	var fallback *View
	if list, ok := s.cache.GetList(petID); ok && len(list) > 0 {
		fallback = &View{PetID: petID, Reports: list, Source: SourceCache}
	} else if previews := s.cache.GetPreviews(petID); len(previews) > 0 {
		reps := make([]entity.HealthReport, 0, len(previews))
		for _, p := range previews {
			reps = append(reps, p.ToReport())
		}
		fallback = &View{PetID: petID, Reports: reps, Source: SourcePreview}
	}
	if fallback != nil {
		render(*fallback)
	}

	fresh, err := s.repo.List(ctx, petID)
	if err != nil {
		if fallback != nil {
			log.Warn("reports.refresh_failed", "source", fallback.Source, "error", err)
			stale := *fallback
			stale.Stale = true
			render(stale)
			return nil
		}
		log.Error("reports.fetch_failed", "error", err)
		return common.FetchError(err)
	}

	s.cache.SetList(petID, fresh)
	render(View{PetID: petID, Reports: fresh, Source: SourceRemote})
	return nil
}

// Load runs View and returns the final rendering.
func (s *Service) Load(ctx context.Context, petID string) (View, error) {
	var last View
	if err := s.View(ctx, petID, func(v View) { last = v }); err != nil {
		return View{}, err
	}
	return last, nil
}
