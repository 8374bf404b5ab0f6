package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conductor/internal/domain"
)

// PostgresSchedules — ScheduleStore на PostgreSQL.
type PostgresSchedules struct {
	pool *pgxpool.Pool
}

// NewPostgresSchedules создаёт хранилище расписаний на пуле pgx.
func NewPostgresSchedules(pool *pgxpool.Pool) *PostgresSchedules {
	return &PostgresSchedules{pool: pool}
}

// CreateSchedule сохраняет новое расписание.
func (s *PostgresSchedules) CreateSchedule(ctx context.Context, sched *domain.Schedule) error {
	inputJSON, err := json.Marshal(sched.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO schedules (id, flow_id, name, cron_expr, interval_sec, timezone,
		                       enabled, next_due_at, input, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.pool.Exec(ctx, query,
		sched.ID,
		sched.FlowID,
		nullString(sched.Name),
		nullString(sched.CronExpr),
		sched.IntervalSec,
		sched.Timezone,
		sched.Enabled,
		sched.NextDueAt,
		inputJSON,
		sched.CreatedAt,
		sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// UpdateSchedule обновляет расписание целиком.
func (s *PostgresSchedules) UpdateSchedule(ctx context.Context, sched *domain.Schedule) error {
	inputJSON, err := json.Marshal(sched.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		UPDATE schedules
		SET name = $2, cron_expr = $3, interval_sec = $4, timezone = $5, enabled = $6,
		    next_due_at = $7, last_run_at = $8, last_run_id = $9, input = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := s.pool.Exec(ctx, query,
		sched.ID,
		nullString(sched.Name),
		nullString(sched.CronExpr),
		sched.IntervalSec,
		sched.Timezone,
		sched.Enabled,
		sched.NextDueAt,
		sched.LastRunAt,
		sched.LastRunID,
		inputJSON,
		sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSchedule удаляет расписание.
func (s *PostgresSchedules) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSchedule возвращает расписание по ID.
func (s *PostgresSchedules) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := scheduleSelect + ` WHERE id = $1`
	return scanSchedule(s.pool.QueryRow(ctx, query, id))
}

// ListSchedules возвращает все расписания.
func (s *PostgresSchedules) ListSchedules(ctx context.Context) ([]*domain.Schedule, error) {
	query := scheduleSelect + ` ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// ListDue возвращает включённые расписания с next_due_at <= now.
func (s *PostgresSchedules) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error) {
	query := scheduleSelect + `
		WHERE enabled = true AND next_due_at IS NOT NULL AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

const scheduleSelect = `
	SELECT id, flow_id, name, cron_expr, interval_sec, timezone, enabled,
	       next_due_at, last_run_at, last_run_id, input, created_at, updated_at
	FROM schedules
`

// collectSchedules сканирует все строки результата.
func collectSchedules(rows pgx.Rows) ([]*domain.Schedule, error) {
	var schedules []*domain.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// scanSchedule сканирует одну строку в Schedule.
func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var sched domain.Schedule
	var name, cronExpr *string
	var inputJSON []byte

	err := row.Scan(
		&sched.ID,
		&sched.FlowID,
		&name,
		&cronExpr,
		&sched.IntervalSec,
		&sched.Timezone,
		&sched.Enabled,
		&sched.NextDueAt,
		&sched.LastRunAt,
		&sched.LastRunID,
		&inputJSON,
		&sched.CreatedAt,
		&sched.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if name != nil {
		sched.Name = *name
	}
	if cronExpr != nil {
		sched.CronExpr = *cronExpr
	}
	if err := unmarshalData(inputJSON, &sched.Input); err != nil {
		return nil, err
	}
	return &sched, nil
}
