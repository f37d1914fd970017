package archive_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memarchive "github.com/agentprovision/orchestrator/internal/adapter/memory/archive"
	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
)

func TestArchiveTask(t *testing.T) {
	ctx := context.Background()
	store := memarchive.New()

	task := domaintask.New(uuid.New(), "coder", "p", domaintask.PriorityNormal)
	task.Status = domaintask.StatusCompleted

	require.NoError(t, store.ArchiveTask(ctx, task))
	require.NoError(t, store.ArchiveTask(ctx, task))

	got := store.Archived()
	assert.Len(t, got, 2)
	assert.Equal(t, task.ID, got[0].ID)
}
