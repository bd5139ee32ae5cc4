package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), common.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "reports.db"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), "health_report_changes", nil))
	t.Cleanup(func() { db.Close(nil) })
	return db
}

func newRepo(t *testing.T) (*reportRepository, *time.Time) {
	t.Helper()
	repo := NewReportRepository(openTestDB(t), nil).(*reportRepository)
	clock := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	return repo, &clock
}

func sample(petID, date string) entity.HealthReport {
	unit, rng := "mEq/L", "140-155"
	vet := "Jane Smith"
	return entity.HealthReport{
		PetID:        petID,
		Title:        "Electrolytes",
		ReportType:   string(constants.BloodWork),
		ReportDate:   date,
		Veterinarian: &vet,
		Parameters: []entity.ExtractedParameter{
			{Name: "Sodium", Value: "150", Unit: &unit, ReferenceRange: &rng, Status: constants.ParameterNormal},
		},
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	in, err := repo.Insert(ctx, sample("pet1", "2025-01-05"))
	require.NoError(t, err)
	assert.NotEmpty(t, in.ID)
	assert.Equal(t, constants.ReportStatusProcessing, in.Status)

	got, err := repo.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Nil(t, got.AIAnalysis)
	require.Len(t, got.Parameters, 1)
	assert.Equal(t, "mEq/L", *got.Parameters[0].Unit)
}

func TestListOrdering(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()

	a, err := repo.Insert(ctx, sample("pet1", "2025-01-01"))
	require.NoError(t, err)
	*clock = clock.Add(time.Minute)
	b, err := repo.Insert(ctx, sample("pet1", "2025-02-01"))
	require.NoError(t, err)
	*clock = clock.Add(time.Minute)
	c, err := repo.Insert(ctx, sample("pet1", "2025-01-01"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, sample("pet2", "2025-03-01"))
	require.NoError(t, err)

	list, err := repo.List(ctx, "pet1")
	require.NoError(t, err)
	got := []string{list[0].ID, list[1].ID, list[2].ID}
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, got)

	empty, err := repo.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdateAnalysisAndStatus(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()
	in, err := repo.Insert(ctx, sample("pet1", "2025-01-05"))
	require.NoError(t, err)

	*clock = clock.Add(time.Hour)
	got, err := repo.UpdateAnalysis(ctx, in.ID, "All values normal.", constants.ReportStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusCompleted, got.Status)
	require.NotNil(t, got.AIAnalysis)
	assert.Equal(t, "All values normal.", *got.AIAnalysis)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	got, err = repo.UpdateStatus(ctx, in.ID, constants.ReportStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusFailed, got.Status)
}

func TestMissingRowsAreNotFound(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = repo.UpdateAnalysis(ctx, "nope", "x", constants.ReportStatusCompleted)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = repo.UpdateStatus(ctx, "nope", constants.ReportStatusFailed)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "pet1", "nope"), common.ErrNotFound)
}

func TestDeleteScopedToPet(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	in, err := repo.Insert(ctx, sample("pet1", "2025-01-05"))
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Delete(ctx, "pet2", in.ID), common.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "pet1", in.ID))
	_, err = repo.Get(ctx, in.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), common.DatabaseConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestRecordDecodesNotifyPayload(t *testing.T) {
	params := `[{"name":"BUN","value":"40","status":"high"}]`
	rec := Record{ID: "r1", PetID: "pet1", Title: "Chem", ReportType: "Blood Work", ReportDate: "2025-01-01",
		Status: "completed", Parameters: &params, CreatedAt: 1736000000000, UpdatedAt: 1736000000000}

	h, err := rec.ToEntity()
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusCompleted, h.Status)
	require.Len(t, h.Parameters, 1)
	assert.Equal(t, constants.ParameterHigh, h.Parameters[0].Status)
	assert.Equal(t, int64(1736000000000), h.CreatedAt.UnixMilli())

	bad := "{"
	rec.Parameters = &bad
	_, err = rec.ToEntity()
	assert.Error(t, err)
}
