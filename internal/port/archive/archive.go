package archive

import (
	"context"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
)

// Store is the audit sink for terminal tasks. Archive failures are logged and
// never surfaced to the reporting agent — the in-memory store remains the
// authoritative record for metrics.
type Store interface {
	ArchiveTask(ctx context.Context, t domaintask.Task) error
}
