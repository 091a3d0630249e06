package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/stagerun/internal/domain"
)

// StageRepo — репозиторий записей о стадиях.
type StageRepo struct {
	pool *pgxpool.Pool
}

// NewStageRepo создаёт новый StageRepo.
func NewStageRepo(pool *pgxpool.Pool) *StageRepo {
	return &StageRepo{pool: pool}
}

// Upsert сохраняет запись о стадии; ключ — (run_id, position).
func (r *StageRepo) Upsert(ctx context.Context, s *domain.StageRecord) error {
	query := `
		INSERT INTO stages (run_id, position, name, method, dir, status, artifacts,
		                    error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, position) DO UPDATE
		SET status = EXCLUDED.status,
		    artifacts = EXCLUDED.artifacts,
		    error = EXCLUDED.error,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at
	`
	_, err := r.pool.Exec(ctx, query,
		s.RunID,
		s.Position,
		s.Name,
		s.Method,
		s.Dir,
		s.Status,
		s.Artifacts,
		nullString(s.Error),
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert stage: %w", err)
	}
	return nil
}

// ListByRun возвращает стадии run по позиции.
func (r *StageRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StageRecord, error) {
	query := `
		SELECT run_id, position, name, method, dir, status, artifacts,
		       error, started_at, finished_at
		FROM stages
		WHERE run_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages by run_id: %w", err)
	}
	defer rows.Close()

	var stages []domain.StageRecord
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, *s)
	}
	return stages, rows.Err()
}

func scanStage(row pgx.Row) (*domain.StageRecord, error) {
	var s domain.StageRecord
	var stageError *string

	err := row.Scan(
		&s.RunID,
		&s.Position,
		&s.Name,
		&s.Method,
		&s.Dir,
		&s.Status,
		&s.Artifacts,
		&stageError,
		&s.StartedAt,
		&s.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan stage: %w", err)
	}

	if stageError != nil {
		s.Error = *stageError
	}
	return &s, nil
}
