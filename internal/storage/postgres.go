package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dangson92/crawl2/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists tasks, including their result records and log
// streams, as JSONB alongside the queryable scalar columns.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			url         TEXT NOT NULL,
			status      TEXT NOT NULL,
			progress    INT NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			result      JSONB,
			logs        JSONB NOT NULL DEFAULT '[]',
			created_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// Save upserts one task.
func (s *PostgresStore) Save(ctx context.Context, task *domain.Task) error {
	var resultJSON []byte
	if task.Result != nil {
		b, err := json.Marshal(task.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = b
	}
	logsJSON, err := json.Marshal(task.Logs)
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO tasks (id, url, status, progress, error, result, logs, created_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status, progress = EXCLUDED.progress, error = EXCLUDED.error,
		   result = EXCLUDED.result, logs = EXCLUDED.logs, finished_at = EXCLUDED.finished_at`,
		task.ID, task.URL, task.Status, task.Progress, task.Error,
		resultJSON, logsJSON, task.CreatedAt, task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// LoadAll returns persisted tasks in creation order.
func (s *PostgresStore) LoadAll(ctx context.Context, limit, offset int) ([]*domain.Task, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, url, status, progress, error, result, logs, created_at, finished_at
		 FROM tasks ORDER BY created_at ASC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		var (
			task       domain.Task
			resultJSON []byte
			logsJSON   []byte
		)
		if err := rows.Scan(&task.ID, &task.URL, &task.Status, &task.Progress, &task.Error,
			&resultJSON, &logsJSON, &task.CreatedAt, &task.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if len(resultJSON) > 0 {
			var record domain.HotelRecord
			if err := json.Unmarshal(resultJSON, &record); err != nil {
				return nil, fmt.Errorf("unmarshal result for task %s: %w", task.ID, err)
			}
			task.Result = &record
		}
		if len(logsJSON) > 0 {
			if err := json.Unmarshal(logsJSON, &task.Logs); err != nil {
				return nil, fmt.Errorf("unmarshal logs for task %s: %w", task.ID, err)
			}
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// Delete removes one task, reporting whether it existed.
func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete task %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAll empties the task table.
func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("delete all tasks: %w", err)
	}
	return nil
}

// Stats counts persisted tasks by status.
func (s *PostgresStore) Stats(ctx context.Context) (domain.StatusCounts, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return domain.StatusCounts{}, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	var counts domain.StatusCounts
	for rows.Next() {
		var (
			status domain.TaskStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return domain.StatusCounts{}, fmt.Errorf("scan stats: %w", err)
		}
		switch status {
		case domain.StatusWaiting:
			counts.Waiting = n
		case domain.StatusProcessing:
			counts.Processing = n
		case domain.StatusCompleted:
			counts.Completed = n
		case domain.StatusError:
			counts.Error = n
		}
	}
	return counts, rows.Err()
}
