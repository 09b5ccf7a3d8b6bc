package queue

import (
	"context"
	"fmt"
	"time"
)

// Memory is an in-process Queue used when Redis is not configured.
type Memory struct {
	tasks chan Task
	block time.Duration
}

// NewMemory returns a queue holding up to size pending tasks.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 64
	}
	return &Memory{tasks: make(chan Task, size), block: 5 * time.Second}
}

// Enqueue implements Queue. It fails instead of blocking when the backlog is full.
func (m *Memory) Enqueue(ctx context.Context, task Task) error {
	stamp(&task)
	select {
	case m.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("ingest queue full (%d pending)", cap(m.tasks))
	}
}

// Next implements Queue.
func (m *Memory) Next(ctx context.Context) (*Task, string, error) {
	timer := time.NewTimer(m.block)
	defer timer.Stop()
	select {
	case task := <-m.tasks:
		return &task, task.ID, nil
	case <-timer.C:
		return nil, "", nil
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// Ack implements Queue; delivery from memory is final.
func (m *Memory) Ack(context.Context, string) error {
	return nil
}

// Pending reports the number of queued tasks.
func (m *Memory) Pending() int {
	return len(m.tasks)
}
