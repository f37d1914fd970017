package archive

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	portarchive "github.com/agentprovision/orchestrator/internal/port/archive"
)

var _ portarchive.Store = (*Store)(nil)

// Store persists terminal tasks for audit. The live engine state stays in
// memory; this table is append-only history.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ArchiveTask(ctx context.Context, t domaintask.Task) error {
	query := `
		INSERT INTO task_archive (id, tenant_id, agent_type, payload_ref, priority,
			status, error, duration_ms, created_at, started_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.TenantID, t.AgentType, t.PayloadRef, t.Priority,
		t.Status, nilIfEmpty(t.Error), t.DurationMs, t.CreatedAt, t.StartedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting archived task: %w", err)
	}
	return nil
}

// ListByTenant reads back archived tasks, newest first. Used by audit tooling
// and the integration tests.
func (s *Store) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domaintask.Task, error) {
	query := `
		SELECT id, tenant_id, agent_type, payload_ref, priority,
			status, COALESCE(error, ''), duration_ms, created_at, started_at, completed_at
		FROM task_archive WHERE tenant_id = $1
		ORDER BY completed_at DESC`

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing archived tasks: %w", err)
	}
	defer rows.Close()

	var out []domaintask.Task
	for rows.Next() {
		var t domaintask.Task
		if err := rows.Scan(
			&t.ID, &t.TenantID, &t.AgentType, &t.PayloadRef, &t.Priority,
			&t.Status, &t.Error, &t.DurationMs, &t.CreatedAt, &t.StartedAt, &t.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning archived task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
