package repository

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"entgo.io/ent/dialect"
)

const reportsTable = "health_reports"

var reChannel = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

const createReportsTable = `CREATE TABLE IF NOT EXISTS health_reports (
	id              TEXT PRIMARY KEY,
	pet_id          TEXT NOT NULL,
	title           TEXT NOT NULL,
	report_type     TEXT NOT NULL,
	report_date     TEXT NOT NULL,
	report_label    TEXT,
	diagnosis       TEXT,
	veterinarian    TEXT,
	image_url       TEXT,
	ai_analysis     TEXT,
	status          TEXT NOT NULL DEFAULT 'processing',
	parameters      TEXT,
	findings        TEXT,
	recommendations TEXT,
	created_at      BIGINT NOT NULL,
	updated_at      BIGINT NOT NULL
)`

const createReportsIndex = `CREATE INDEX IF NOT EXISTS idx_health_reports_pet_date ON health_reports (pet_id, report_date DESC, created_at DESC)`

const notifyFunction = `CREATE OR REPLACE FUNCTION notify_health_report_change() RETURNS trigger AS $$
DECLARE
	rec health_reports;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;
	PERFORM pg_notify('%s', json_build_object('kind', lower(TG_OP), 'record', row_to_json(rec))::text);
	RETURN rec;
END;
$$ LANGUAGE plpgsql`

const dropNotifyTrigger = `DROP TRIGGER IF EXISTS health_reports_notify ON health_reports`

const createNotifyTrigger = `CREATE TRIGGER health_reports_notify
	AFTER INSERT OR UPDATE OR DELETE ON health_reports
	FOR EACH ROW EXECUTE FUNCTION notify_health_report_change()`

// Migrate creates the reports table. On Postgres with a non-empty channel it
// also installs the trigger that publishes row changes with pg_notify.
func (d *DB) Migrate(ctx context.Context, channel string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stmts := []string{createReportsTable, createReportsIndex}
	if d.Dialect == dialect.Postgres && channel != "" {
		if !reChannel.MatchString(channel) {
			return fmt.Errorf("invalid notify channel %q", channel)
		}
		stmts = append(stmts, fmt.Sprintf(notifyFunction, channel), dropNotifyTrigger, createNotifyTrigger)
	}
	for _, stmt := range stmts {
		if err := d.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			logger.Error("migration failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("migrations applied", "dialect", d.Dialect, "notify_channel", channel)
	return nil
}
