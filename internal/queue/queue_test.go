package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Queue = (*Memory)(nil)
	_ Queue = (*Stream)(nil)
)

func TestMemoryDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(4)

	require.NoError(t, q.Enqueue(ctx, Task{DocumentID: "doc-1"}))
	require.NoError(t, q.Enqueue(ctx, Task{DocumentID: "doc-2"}))
	assert.Equal(t, 2, q.Pending())

	task, receipt, err := q.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "doc-1", task.DocumentID)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, task.ID, receipt)
	assert.False(t, task.EnqueuedAt.IsZero())
	require.NoError(t, q.Ack(ctx, receipt))

	task, _, err = q.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-2", task.DocumentID)
}

func TestMemoryRejectsWhenFull(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(1)

	require.NoError(t, q.Enqueue(ctx, Task{DocumentID: "a"}))
	assert.ErrorContains(t, q.Enqueue(ctx, Task{DocumentID: "b"}), "queue full")
}

func TestMemoryNextIdleAndCancel(t *testing.T) {
	q := NewMemory(1)
	q.block = 10 * time.Millisecond

	task, receipt, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.Empty(t, receipt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.block = time.Hour
	_, _, err = q.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamRequiresClient(t *testing.T) {
	var s *Stream
	ctx := context.Background()
	assert.Error(t, s.EnsureGroup(ctx))
	assert.Error(t, s.Enqueue(ctx, Task{DocumentID: "x"}))
	_, _, err := s.Next(ctx)
	assert.Error(t, err)
	assert.NoError(t, s.Ack(ctx, "1-0"))

	defaults := NewStream(nil, RedisOptions{})
	assert.Equal(t, "docai:ingest", defaults.stream)
	assert.Equal(t, "docai-ingest", defaults.group)
	assert.NotEmpty(t, defaults.name)
}
