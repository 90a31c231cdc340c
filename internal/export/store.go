package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == JobCompleted || s == JobFailed || s == JobCanceled
}

// Job is one export request. Snapshot is the timeline as it was when the
// job was submitted.
type Job struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"project_id"`
	Status     JobStatus       `json:"status"`
	Settings   Settings        `json:"settings"`
	Snapshot   timeline.Record `json:"-"`
	Progress   int             `json:"progress"`
	OutputPath string          `json:"output_path,omitempty"`
	SizeBytes  int64           `json:"size_bytes,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, projectID string, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id string, status JobStatus, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	CompleteJob(ctx context.Context, id string, artifact *Artifact) error
}

type SQLiteJobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *SQLiteJobStore {
	return &SQLiteJobStore{db: db}
}

const jobColumns = `id, project_id, status, format, quality, resolution, frame_rate, title, output_dir,
	snapshot, progress, output_path, size_bytes, error, created_at, updated_at`

func (s *SQLiteJobStore) CreateJob(ctx context.Context, j *Job) error {
	snapshot, err := json.Marshal(j.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO export_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, string(j.Status), string(j.Settings.Format), string(j.Settings.Quality),
		j.Settings.Resolution, j.Settings.FrameRate, j.Settings.Title, j.Settings.OutputDir,
		string(snapshot), j.Progress, nullString(j.OutputPath), j.SizeBytes, nullString(j.Error),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (s *SQLiteJobStore) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (s *SQLiteJobStore) ListJobs(ctx context.Context, projectID string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM export_jobs`
	args := []any{}
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)
	return s.queryJobs(ctx, query, args...)
}

func (s *SQLiteJobStore) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE status = ? ORDER BY created_at, rowid`, string(JobPending))
}

func (s *SQLiteJobStore) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *SQLiteJobStore) UpdateJobStatus(ctx context.Context, id string, status JobStatus, errorMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE export_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, string(status), nullString(errorMsg), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (s *SQLiteJobStore) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE export_jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (s *SQLiteJobStore) CompleteJob(ctx context.Context, id string, a *Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE export_jobs
		SET status = ?, progress = 100, output_path = ?, size_bytes = ?, error = NULL, updated_at = ?
		WHERE id = ?
	`, string(JobCompleted), a.Path, a.SizeBytes, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var status, format, quality, snapshot, createdAt, updatedAt string
	var outputPath, errorMsg sql.NullString

	err := row.Scan(&j.ID, &j.ProjectID, &status, &format, &quality, &j.Settings.Resolution,
		&j.Settings.FrameRate, &j.Settings.Title, &j.Settings.OutputDir, &snapshot, &j.Progress,
		&outputPath, &j.SizeBytes, &errorMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	j.Status = JobStatus(status)
	j.Settings.Format = Format(format)
	j.Settings.Quality = Quality(quality)
	j.OutputPath = outputPath.String
	j.Error = errorMsg.String
	if err := json.Unmarshal([]byte(snapshot), &j.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot of job %s: %w", j.ID, err)
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
