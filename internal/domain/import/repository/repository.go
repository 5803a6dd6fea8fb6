// Package repository persists import bookkeeping: uploaded file records,
// import job lifecycle and saved bank column mappings.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/pennypilot/internal/domain/import/analyzer"
)

type UserFile struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StoragePath string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type ImportJob struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	FileID       *uuid.UUID `json:"file_id,omitempty"`
	Source       string     `json:"source"` // csv | xlsx | image
	Status       string     `json:"status"` // pending | running | succeeded | failed
	TotalRows    int        `json:"total_rows"`
	ImportedRows int        `json:"imported_rows"`
	FailedRows   int        `json:"failed_rows"`
	Error        *string    `json:"error,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type BankMapping struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Fingerprint string
	BankName    *string
	Mapping     analyzer.Mapping
	CreatedAt   time.Time
}

type Repo interface {
	CreateUserFile(ctx context.Context, f *UserFile) error
	CreateImportJob(ctx context.Context, job *ImportJob) error
	MarkJobRunning(ctx context.Context, jobID uuid.UUID, totalRows int) error
	FinishJob(ctx context.Context, jobID uuid.UUID, status string, imported, failed int, errMsg *string) error
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*ImportJob, error)
	ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]ImportJob, error)
	GetMappingByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*BankMapping, error)
	SaveMapping(ctx context.Context, m *BankMapping) error
}

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DBTX
}

var _ Repo = (*Repository)(nil)

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUserFile(ctx context.Context, f *UserFile) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO user_files (user_id, file_name, content_type, size_bytes, storage_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		f.UserID, f.FileName, f.ContentType, f.SizeBytes, f.StoragePath,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user file: %w", err)
	}
	return nil
}

func (r *Repository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO import_jobs (user_id, file_id, source, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, status, created_at`,
		job.UserID, job.FileID, job.Source,
	).Scan(&job.ID, &job.Status, &job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

func (r *Repository) MarkJobRunning(ctx context.Context, jobID uuid.UUID, totalRows int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE import_jobs
		SET status = 'running', total_rows = $2, started_at = now()
		WHERE id = $1`, jobID, totalRows)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

func (r *Repository) FinishJob(ctx context.Context, jobID uuid.UUID, status string, imported, failed int, errMsg *string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE import_jobs
		SET status = $2, imported_rows = $3, failed_rows = $4, error = $5, finished_at = now()
		WHERE id = $1`, jobID, status, imported, failed, errMsg)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

const jobColumns = `id, user_id, file_id, source, status, total_rows, imported_rows,
	failed_rows, error, started_at, finished_at, created_at`

func (r *Repository) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*ImportJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE id = $1 AND user_id = $2`,
		jobID, userID)

	var job ImportJob
	if err := scanJob(row, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *Repository) ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]ImportJob, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ImportJob
	for rows.Next() {
		var job ImportJob
		if err := scanJob(rows, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row, job *ImportJob) error {
	if err := row.Scan(
		&job.ID, &job.UserID, &job.FileID, &job.Source, &job.Status,
		&job.TotalRows, &job.ImportedRows, &job.FailedRows, &job.Error,
		&job.StartedAt, &job.FinishedAt, &job.CreatedAt,
	); err != nil {
		return fmt.Errorf("scan import job: %w", err)
	}
	return nil
}

// GetMappingByFingerprint returns nil when no mapping is stored for this
// layout yet.
func (r *Repository) GetMappingByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*BankMapping, error) {
	var m BankMapping
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, fingerprint, bank_name, mapping, created_at
		FROM bank_mappings
		WHERE user_id = $1 AND fingerprint = $2`,
		userID, fingerprint,
	).Scan(&m.ID, &m.UserID, &m.Fingerprint, &m.BankName, &m.Mapping, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	return &m, nil
}

func (r *Repository) SaveMapping(ctx context.Context, m *BankMapping) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO bank_mappings (user_id, fingerprint, bank_name, mapping)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, fingerprint) DO UPDATE
		SET bank_name = EXCLUDED.bank_name, mapping = EXCLUDED.mapping
		RETURNING id, created_at`,
		m.UserID, m.Fingerprint, m.BankName, m.Mapping,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}
