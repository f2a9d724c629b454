package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/amishk599/skillpiler/internal/model"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Timestamps are stored as fixed-width UTC text so they sort lexically on
// every supported driver.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLStore persists jobs and time series in SQLite or PostgreSQL.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type jobRow struct {
	JobID        string         `db:"job_id"`
	Username     string         `db:"username"`
	Status       string         `db:"status"`
	CreatedAt    string         `db:"created_at"`
	CompletedAt  sql.NullString `db:"completed_at"`
	ErrorMessage string         `db:"error_message"`
	Result       sql.NullString `db:"result"`
}

// OpenSQL connects with driver "sqlite" or "postgres" and applies the
// embedded migrations.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var dialect string
	switch driver {
	case "sqlite":
		dialect = "sqlite3"
	case "postgres":
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect(dialect); err != nil {
		db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return NewSQLStore(db), nil
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) SaveJob(ctx context.Context, job model.AnalysisJob) error {
	row := jobRow{
		JobID:        job.JobID,
		Username:     job.Username,
		Status:       string(job.Status),
		CreatedAt:    formatTime(job.CreatedAt),
		ErrorMessage: job.ErrorMessage,
	}
	if job.CompletedAt != nil {
		row.CompletedAt = sql.NullString{String: formatTime(*job.CompletedAt), Valid: true}
	}
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("encoding result of job %s: %w", job.JobID, err)
		}
		row.Result = sql.NullString{String: string(data), Valid: true}
	}

	query := s.db.Rebind(`INSERT INTO analysis_jobs
		(job_id, username, status, created_at, completed_at, error_message, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			error_message = excluded.error_message,
			result = excluded.result`)
	_, err := s.db.ExecContext(ctx, query,
		row.JobID, row.Username, row.Status, row.CreatedAt,
		row.CompletedAt, row.ErrorMessage, row.Result,
	)
	if err != nil {
		return fmt.Errorf("saving job %s: %w", job.JobID, err)
	}
	return nil
}

func (s *SQLStore) GetJob(ctx context.Context, jobID string) (model.AnalysisJob, error) {
	var row jobRow
	query := s.db.Rebind(`SELECT job_id, username, status, created_at, completed_at, error_message, result
		FROM analysis_jobs WHERE job_id = ?`)
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AnalysisJob{}, model.ErrNotFound
		}
		return model.AnalysisJob{}, fmt.Errorf("loading job %s: %w", jobID, err)
	}
	return row.toJob()
}

func (r jobRow) toJob() (model.AnalysisJob, error) {
	created, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return model.AnalysisJob{}, fmt.Errorf("parsing created_at of job %s: %w", r.JobID, err)
	}
	job := model.AnalysisJob{
		JobID:        r.JobID,
		Username:     r.Username,
		Status:       model.JobStatus(r.Status),
		CreatedAt:    created,
		ErrorMessage: r.ErrorMessage,
	}
	if r.CompletedAt.Valid {
		completed, err := time.Parse(timeLayout, r.CompletedAt.String)
		if err != nil {
			return model.AnalysisJob{}, fmt.Errorf("parsing completed_at of job %s: %w", r.JobID, err)
		}
		job.CompletedAt = &completed
	}
	if r.Result.Valid {
		var result model.AnalysisResult
		if err := json.Unmarshal([]byte(r.Result.String), &result); err != nil {
			return model.AnalysisJob{}, fmt.Errorf("decoding result of job %s: %w", r.JobID, err)
		}
		job.Result = &result
	}
	return job, nil
}

func (s *SQLStore) SaveTimeSeries(ctx context.Context, username string, points []model.TimeSeriesPoint) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encoding time series for %s: %w", username, err)
	}
	query := s.db.Rebind(`INSERT INTO language_timeseries (username, points, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			points = excluded.points,
			updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, username, string(data), formatTime(s.now())); err != nil {
		return fmt.Errorf("saving time series for %s: %w", username, err)
	}
	return nil
}

func (s *SQLStore) GetTimeSeries(ctx context.Context, username string) ([]model.TimeSeriesPoint, error) {
	var data string
	query := s.db.Rebind(`SELECT points FROM language_timeseries WHERE username = ?`)
	if err := s.db.GetContext(ctx, &data, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("loading time series for %s: %w", username, err)
	}
	var points []model.TimeSeriesPoint
	if err := json.Unmarshal([]byte(data), &points); err != nil {
		return nil, fmt.Errorf("decoding time series for %s: %w", username, err)
	}
	return points, nil
}

// Cleanup deletes finished jobs completed more than olderThan ago and
// returns how many were removed.
func (s *SQLStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := formatTime(s.now().Add(-olderThan))
	query := s.db.Rebind(`DELETE FROM analysis_jobs WHERE completed_at IS NOT NULL AND completed_at < ?`)
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up jobs older than %v: %w", olderThan, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged jobs: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
