package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
)

// uniqueViolation — код ошибки PostgreSQL для нарушения уникальности.
const uniqueViolation = "23505"

// PostgresFlows — FlowStore на PostgreSQL.
type PostgresFlows struct {
	pool *pgxpool.Pool
}

// NewPostgresFlows создаёт хранилище flows на пуле pgx.
func NewPostgresFlows(pool *pgxpool.Pool) *PostgresFlows {
	return &PostgresFlows{pool: pool}
}

// CreateFlow регистрирует flow. Уникальность имени обеспечивает БД;
// нарушение транслируется в graph.ErrDuplicateFlowName.
func (s *PostgresFlows) CreateFlow(ctx context.Context, flow *domain.Flow) error {
	query := `
		INSERT INTO flows (id, name, description, source, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		flow.ID,
		flow.Name,
		nullString(flow.Description),
		flow.Source,
		flow.IsActive,
		flow.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return graph.NewDuplicateFlowName(flow.Name)
		}
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// UpdateFlow обновляет метаданные flow.
func (s *PostgresFlows) UpdateFlow(ctx context.Context, flow *domain.Flow) error {
	query := `
		UPDATE flows
		SET description = $2, is_active = $3
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		flow.ID,
		nullString(flow.Description),
		flow.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFlow возвращает flow по ID.
func (s *PostgresFlows) GetFlow(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	query := `
		SELECT id, name, description, source, is_active, created_at
		FROM flows
		WHERE id = $1
	`
	return scanFlow(s.pool.QueryRow(ctx, query, id))
}

// GetFlowByName возвращает flow по имени.
func (s *PostgresFlows) GetFlowByName(ctx context.Context, name string) (*domain.Flow, error) {
	query := `
		SELECT id, name, description, source, is_active, created_at
		FROM flows
		WHERE name = $1
	`
	return scanFlow(s.pool.QueryRow(ctx, query, name))
}

// ListFlows возвращает все flows, отсортированные по имени.
func (s *PostgresFlows) ListFlows(ctx context.Context) ([]*domain.Flow, error) {
	query := `
		SELECT id, name, description, source, is_active, created_at
		FROM flows
		ORDER BY name ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []*domain.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// scanFlow сканирует одну строку в Flow.
func scanFlow(row pgx.Row) (*domain.Flow, error) {
	var flow domain.Flow
	var description *string

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&description,
		&flow.Source,
		&flow.IsActive,
		&flow.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow: %w", err)
	}

	if description != nil {
		flow.Description = *description
	}
	return &flow, nil
}
