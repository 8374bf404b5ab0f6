package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conductor/internal/domain"
)

// PostgresRuns — RunStore на PostgreSQL.
//
// Схема: таблица runs и таблица tasks с внешним ключом run_id;
// position хранит топологический порядок задач внутри run.
type PostgresRuns struct {
	pool *pgxpool.Pool
}

// NewPostgresRuns создаёт хранилище runs на пуле pgx.
func NewPostgresRuns(pool *pgxpool.Pool) *PostgresRuns {
	return &PostgresRuns{pool: pool}
}

// CreateRun сохраняет run и записи всех его задач одной транзакцией.
func (s *PostgresRuns) CreateRun(ctx context.Context, run *domain.FlowRun) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inputJSON, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO runs (id, flow_name, status, input, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, query,
		run.ID,
		run.FlowName,
		run.Status,
		inputJSON,
		run.StartedAt,
		run.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, task := range run.Tasks {
		if err := insertTask(ctx, tx, run.ID, i, task); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// insertTask добавляет запись задачи.
func insertTask(ctx context.Context, tx pgx.Tx, runID uuid.UUID, position int, task *domain.TaskRun) error {
	query := `
		INSERT INTO tasks (id, run_id, position, name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, query,
		task.ID,
		runID,
		position,
		task.Name,
		task.Status,
		task.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert task %s: %w", task.Name, err)
	}
	return nil
}

// RecordTaskTransition обновляет запись задачи. Best-effort:
// вызывается движком по ходу выполнения для живого просмотра.
func (s *PostgresRuns) RecordTaskTransition(ctx context.Context, runID uuid.UUID, task *domain.TaskRun) error {
	inputJSON, err := json.Marshal(task.Input)
	if err != nil {
		return fmt.Errorf("marshal task input: %w", err)
	}
	outputJSON, err := json.Marshal(task.Output)
	if err != nil {
		return fmt.Errorf("marshal task output: %w", err)
	}

	query := `
		UPDATE tasks
		SET status = $3, input = $4, output = $5, error = $6,
		    started_at = $7, finished_at = $8
		WHERE run_id = $1 AND name = $2
	`
	result, err := s.pool.Exec(ctx, query,
		runID,
		task.Name,
		task.Status,
		inputJSON,
		outputJSON,
		nullString(task.Error),
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinalizeRun записывает авторитетное финальное состояние:
// обновляет run и все записи задач одной транзакцией.
func (s *PostgresRuns) FinalizeRun(ctx context.Context, run *domain.FlowRun) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $2, result = $3, error = $4, started_at = $5, finished_at = $6
		WHERE id = $1 AND finished_at IS NULL
	`
	res, err := tx.Exec(ctx, query,
		run.ID,
		run.Status,
		resultJSON,
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if res.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`, run.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check run: %w", err)
		}
		if exists {
			return ErrAlreadyFinalized
		}
		return ErrNotFound
	}

	for _, task := range run.Tasks {
		inputJSON, err := json.Marshal(task.Input)
		if err != nil {
			return fmt.Errorf("marshal task input: %w", err)
		}
		outputJSON, err := json.Marshal(task.Output)
		if err != nil {
			return fmt.Errorf("marshal task output: %w", err)
		}

		taskQuery := `
			UPDATE tasks
			SET status = $3, input = $4, output = $5, error = $6,
			    started_at = $7, finished_at = $8
			WHERE run_id = $1 AND name = $2
		`
		if _, err := tx.Exec(ctx, taskQuery,
			run.ID,
			task.Name,
			task.Status,
			inputJSON,
			outputJSON,
			nullString(task.Error),
			task.StartedAt,
			task.FinishedAt,
		); err != nil {
			return fmt.Errorf("update task %s: %w", task.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// GetRun возвращает run с задачами в сохранённом порядке.
func (s *PostgresRuns) GetRun(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	query := `
		SELECT id, flow_name, status, input, result, error,
		       started_at, finished_at, created_at
		FROM runs
		WHERE id = $1
	`
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	tasks, err := s.listTasks(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Tasks = tasks
	return run, nil
}

// ListRuns возвращает runs по фильтру, новые первыми.
// Записи задач подгружаются для каждого run.
func (s *PostgresRuns) ListRuns(ctx context.Context, filter RunFilter) ([]*domain.FlowRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, flow_name, status, input, result, error,
		       started_at, finished_at, created_at
		FROM runs
		WHERE ($1::text IS NULL OR flow_name = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := s.pool.Query(ctx, query,
		nullString(filter.FlowName),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.FlowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		tasks, err := s.listTasks(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		run.Tasks = tasks
	}
	return runs, nil
}

// listTasks возвращает записи задач run в порядке position.
func (s *PostgresRuns) listTasks(ctx context.Context, runID uuid.UUID) ([]*domain.TaskRun, error) {
	query := `
		SELECT id, name, status, input, output, error,
		       started_at, finished_at, created_at
		FROM tasks
		WHERE run_id = $1
		ORDER BY position ASC
	`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.TaskRun
	for rows.Next() {
		var task domain.TaskRun
		var inputJSON, outputJSON []byte
		var taskError *string

		if err := rows.Scan(
			&task.ID,
			&task.Name,
			&task.Status,
			&inputJSON,
			&outputJSON,
			&taskError,
			&task.StartedAt,
			&task.FinishedAt,
			&task.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		if err := unmarshalData(inputJSON, &task.Input); err != nil {
			return nil, err
		}
		if err := unmarshalData(outputJSON, &task.Output); err != nil {
			return nil, err
		}
		if taskError != nil {
			task.Error = *taskError
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// scanRun сканирует одну строку в FlowRun.
func scanRun(row pgx.Row) (*domain.FlowRun, error) {
	var run domain.FlowRun
	var inputJSON, resultJSON []byte
	var runError *string

	err := row.Scan(
		&run.ID,
		&run.FlowName,
		&run.Status,
		&inputJSON,
		&resultJSON,
		&runError,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if err := unmarshalData(inputJSON, &run.Input); err != nil {
		return nil, err
	}
	if err := unmarshalData(resultJSON, &run.Result); err != nil {
		return nil, err
	}
	if runError != nil {
		run.Error = *runError
	}
	return &run, nil
}

// unmarshalData распаковывает JSONB-колонку в словарь данных.
func unmarshalData(raw []byte, dst *map[string]any) error {
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
