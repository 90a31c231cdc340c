package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

type Repository interface {
	CreateProject(ctx context.Context, p *Project, rec timeline.Record) error
	GetProject(ctx context.Context, id string) (*Project, error)
	GetRecord(ctx context.Context, id string) (*timeline.Record, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	SaveRecord(ctx context.Context, id string, rec timeline.Record, modifiedAt time.Time) error
	DeleteProject(ctx context.Context, id string) error

	AddMarker(ctx context.Context, m *Marker) error
	ListMarkers(ctx context.Context, projectID string) ([]*Marker, error)
	DeleteMarker(ctx context.Context, projectID, id string) (bool, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project, rec timeline.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, resolution, frame_rate, aspect_ratio, record, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Settings.Resolution, p.Settings.FrameRate, p.Settings.AspectRatio, string(data),
		p.CreatedAt.Format(time.RFC3339), p.ModifiedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, resolution, frame_rate, aspect_ratio, created_at, modified_at
		FROM projects WHERE id = ?
	`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (*timeline.Record, error) {
	var data string
	err := r.db.QueryRowContext(ctx, "SELECT record FROM projects WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec timeline.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode record of project %s: %w", id, err)
	}
	return &rec, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, resolution, frame_rate, aspect_ratio, created_at, modified_at
		FROM projects ORDER BY modified_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, resolution = ?, frame_rate = ?, aspect_ratio = ?, modified_at = ?
		WHERE id = ?
	`, p.Name, p.Settings.Resolution, p.Settings.FrameRate, p.Settings.AspectRatio,
		p.ModifiedAt.Format(time.RFC3339), p.ID)
	return err
}

func (r *SQLiteRepository) SaveRecord(ctx context.Context, id string, rec timeline.Record, modifiedAt time.Time) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = r.db.ExecContext(ctx, "UPDATE projects SET record = ?, modified_at = ? WHERE id = ?",
		string(data), modifiedAt.Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) AddMarker(ctx context.Context, m *Marker) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO markers (id, project_id, time, label, created_at) VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.ProjectID, m.Time, m.Label, m.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListMarkers(ctx context.Context, projectID string) ([]*Marker, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, time, label, created_at FROM markers
		WHERE project_id = ? ORDER BY time, rowid
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markers []*Marker
	for rows.Next() {
		var m Marker
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Time, &m.Label, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		markers = append(markers, &m)
	}
	return markers, rows.Err()
}

func (r *SQLiteRepository) DeleteMarker(ctx context.Context, projectID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM markers WHERE id = ? AND project_id = ?", id, projectID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	var createdAt, modifiedAt string
	err := row.Scan(&p.ID, &p.Name, &p.Settings.Resolution, &p.Settings.FrameRate,
		&p.Settings.AspectRatio, &createdAt, &modifiedAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.ModifiedAt, _ = time.Parse(time.RFC3339, modifiedAt)
	return &p, nil
}
