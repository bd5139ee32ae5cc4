package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
)

// MutationState tracks an optimistic cache change against its remote write.
type MutationState string

const (
	MutationPending    MutationState = "pending"
	MutationCommitted  MutationState = "committed"
	MutationRolledBack MutationState = "rolled_back"
)

// Mutation records one optimistic write.
type Mutation struct {
	ID        string
	Op        string
	PetID     string
	ReportID  string
	State     MutationState
	StartedAt time.Time
	Err       error
}

// Delete removes the report from the cache at once, then from the remote store.
// If the remote delete fails the cache is restored to its prior contents.
func (s *Service) Delete(ctx context.Context, petID, reportID string) (Mutation, error) {
	ctx = common.WithPetID(ctx, petID)
	log := common.LoggerFromContext(ctx, s.logger)

	if err := common.NewValidator().
		Field("pet_id", petID, common.Required).
		Field("report_id", reportID, common.Required).
		Err(); err != nil {
		return Mutation{}, err
	}

	m := Mutation{
		ID:        uuid.NewString(),
		Op:        "delete",
		PetID:     petID,
		ReportID:  reportID,
		State:     MutationPending,
		StartedAt: s.now(),
	}
	snap := s.cache.Snapshot(petID)
	s.cache.RemoveReport(petID, reportID)
	log.Debug("mutation.pending", "mutation_id", m.ID, "op", m.Op, "report_id", reportID)

	if err := s.repo.Delete(ctx, petID, reportID); err != nil {
		s.cache.Restore(snap)
		m.State = MutationRolledBack
		m.Err = err
		log.Warn("mutation.rolled_back", "mutation_id", m.ID, "report_id", reportID, "error", err)
		return m, fmt.Errorf("delete report: %w", err)
	}

	m.State = MutationCommitted
	log.Info("mutation.committed", "mutation_id", m.ID, "op", m.Op, "report_id", reportID)
	return m, nil
}
