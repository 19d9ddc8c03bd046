package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore journals feedback tasks to Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initFeedbackSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initFeedbackSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS feedback_tasks (
			id TEXT PRIMARY KEY,
			session_ref TEXT NOT NULL,
			role_ref TEXT NOT NULL DEFAULT '',
			context_id TEXT NOT NULL,
			state TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			enqueued_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ NULL,
			ended_at TIMESTAMPTZ NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_tasks_enqueued ON feedback_tasks (enqueued_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init feedback schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveTask(ctx context.Context, task Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback_tasks (id, session_ref, role_ref, context_id, state, error, enqueued_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at`,
		task.ID, task.SessionRef, task.RoleRef, task.ContextID,
		string(task.State), task.Error, task.EnqueuedAt, task.StartedAt, task.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("save feedback task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, session_ref, role_ref, context_id, state, error, enqueued_at, started_at, ended_at
		FROM feedback_tasks WHERE id = $1`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrStoreNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get feedback task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_ref, role_ref, context_id, state, error, enqueued_at, started_at, ended_at
		FROM feedback_tasks ORDER BY enqueued_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanTask(row pgx.Row) (Task, error) {
	var task Task
	var state string
	err := row.Scan(&task.ID, &task.SessionRef, &task.RoleRef, &task.ContextID,
		&state, &task.Error, &task.EnqueuedAt, &task.StartedAt, &task.EndedAt)
	if err != nil {
		return Task{}, err
	}
	task.State = TaskState(state)
	return task, nil
}
