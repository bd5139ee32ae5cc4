package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/utils"
)

var reportColumns = []string{
	"id", "pet_id", "title", "report_type", "report_date", "report_label", "diagnosis",
	"veterinarian", "image_url", "ai_analysis", "status", "parameters", "findings",
	"recommendations", "created_at", "updated_at",
}

// ReportRepository is the remote report store keyed by pet.
type ReportRepository interface {
	List(ctx context.Context, petID string) ([]entity.HealthReport, error)
	Get(ctx context.Context, id string) (entity.HealthReport, error)
	Insert(ctx context.Context, report entity.HealthReport) (entity.HealthReport, error)
	UpdateAnalysis(ctx context.Context, id, analysis string, status constants.ReportStatus) (entity.HealthReport, error)
	UpdateStatus(ctx context.Context, id string, status constants.ReportStatus) (entity.HealthReport, error)
	Delete(ctx context.Context, petID, id string) error
}

type reportRepository struct {
	drv     *entsql.Driver
	dialect string
	logger  *slog.Logger
	now     func() time.Time
}

func NewReportRepository(db *DB, logger *slog.Logger) ReportRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportRepository{
		drv:     db.Driver,
		dialect: db.Dialect,
		logger:  logger,
		now:     time.Now,
	}
}

func notFound(id string) error {
	return common.NewAppError("NOT_FOUND", fmt.Sprintf("report %s not found", id), common.ErrNotFound)
}

func dbError(op string, err error) error {
	return common.NewAppError("DB_ERROR", op, errors.Join(common.ErrDatabase, err))
}

func (r *reportRepository) List(ctx context.Context, petID string) ([]entity.HealthReport, error) {
	q, args := entsql.Dialect(r.dialect).
		Select(reportColumns...).
		From(entsql.Table(reportsTable)).
		Where(entsql.EQ("pet_id", petID)).
		OrderBy(entsql.Desc("report_date"), entsql.Desc("created_at")).
		Query()
	out, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list reports", "pet_id", petID, "error", err)
		return nil, dbError("list reports", err)
	}
	return out, nil
}

func (r *reportRepository) Get(ctx context.Context, id string) (entity.HealthReport, error) {
	q, args := entsql.Dialect(r.dialect).
		Select(reportColumns...).
		From(entsql.Table(reportsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	out, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to get report", "report_id", id, "error", err)
		return entity.HealthReport{}, dbError("get report", err)
	}
	if len(out) == 0 {
		return entity.HealthReport{}, notFound(id)
	}
	return out[0], nil
}

// Insert assigns an id when missing and stamps both timestamps.
func (r *reportRepository) Insert(ctx context.Context, report entity.HealthReport) (entity.HealthReport, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if !report.Status.Valid() {
		report.Status = constants.ReportStatusProcessing
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	report.CreatedAt, report.UpdatedAt = now, now

	rec, err := RecordFromEntity(report)
	if err != nil {
		return entity.HealthReport{}, err
	}
	q, args := entsql.Dialect(r.dialect).
		Insert(reportsTable).
		Columns(reportColumns...).
		Values(
			rec.ID, rec.PetID, rec.Title, rec.ReportType, rec.ReportDate,
			utils.ToNullString(rec.ReportLabel), utils.ToNullString(rec.Diagnosis),
			utils.ToNullString(rec.Veterinarian), utils.ToNullString(rec.ImageURL),
			utils.ToNullString(rec.AIAnalysis), rec.Status, utils.ToNullString(rec.Parameters),
			utils.ToNullString(rec.Findings), utils.ToNullString(rec.Recommendations),
			rec.CreatedAt, rec.UpdatedAt,
		).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to insert report", "pet_id", report.PetID, "error", err)
		return entity.HealthReport{}, dbError("insert report", err)
	}
	r.logger.Info("report inserted", "report_id", report.ID, "pet_id", report.PetID, "report_type", report.ReportType)
	return report, nil
}

func (r *reportRepository) UpdateAnalysis(ctx context.Context, id, analysis string, status constants.ReportStatus) (entity.HealthReport, error) {
	u := entsql.Dialect(r.dialect).
		Update(reportsTable).
		Set("ai_analysis", analysis).
		Set("status", string(status)).
		Set("updated_at", r.now().UnixMilli()).
		Where(entsql.EQ("id", id))
	if err := r.update(ctx, id, u); err != nil {
		return entity.HealthReport{}, err
	}
	return r.Get(ctx, id)
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id string, status constants.ReportStatus) (entity.HealthReport, error) {
	u := entsql.Dialect(r.dialect).
		Update(reportsTable).
		Set("status", string(status)).
		Set("updated_at", r.now().UnixMilli()).
		Where(entsql.EQ("id", id))
	if err := r.update(ctx, id, u); err != nil {
		return entity.HealthReport{}, err
	}
	return r.Get(ctx, id)
}

func (r *reportRepository) Delete(ctx context.Context, petID, id string) error {
	q, args := entsql.Dialect(r.dialect).
		Delete(reportsTable).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("pet_id", petID))).
		Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to delete report", "report_id", id, "error", err)
		return dbError("delete report", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	r.logger.Info("report deleted", "report_id", id, "pet_id", petID)
	return nil
}

func (r *reportRepository) update(ctx context.Context, id string, u *entsql.UpdateBuilder) error {
	q, args := u.Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to update report", "report_id", id, "error", err)
		return dbError("update report", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *reportRepository) query(ctx context.Context, q string, args []any) ([]entity.HealthReport, error) {
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.HealthReport, 0)
	for rows.Next() {
		var (
			rec                                                         Record
			label, diagnosis, vet, image, analysis, params, find, recom sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.PetID, &rec.Title, &rec.ReportType, &rec.ReportDate,
			&label, &diagnosis, &vet, &image, &analysis, &rec.Status, &params,
			&find, &recom, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rec.ReportLabel = utils.FromNullString(label)
		rec.Diagnosis = utils.FromNullString(diagnosis)
		rec.Veterinarian = utils.FromNullString(vet)
		rec.ImageURL = utils.FromNullString(image)
		rec.AIAnalysis = utils.FromNullString(analysis)
		rec.Parameters = utils.FromNullString(params)
		rec.Findings = utils.FromNullString(find)
		rec.Recommendations = utils.FromNullString(recom)

		h, err := rec.ToEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
