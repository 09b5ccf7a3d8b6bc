// Package queue carries document ingestion tasks from the upload handler to
// the ingest worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Task asks a worker to ingest one uploaded document.
type Task struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue delivers tasks at least once. Next returns a nil task when nothing
// arrived within the block window; every delivered task must be acked with
// the returned receipt.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Next(ctx context.Context) (*Task, string, error)
	Ack(ctx context.Context, receipt string) error
}

func stamp(task *Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
}

// RedisOptions names the stream and consumer group.
type RedisOptions struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
}

// Stream is a Queue over a Redis Stream consumer group, so several devserver
// instances share one ingest backlog.
type Stream struct {
	client   redis.UniversalClient
	stream   string
	group    string
	name     string
	blockDur time.Duration
}

// NewStream binds a queue to a stream + group.
func NewStream(client redis.UniversalClient, opts RedisOptions) *Stream {
	if opts.Stream == "" {
		opts.Stream = "docai:ingest"
	}
	if opts.Group == "" {
		opts.Group = "docai-ingest"
	}
	if opts.Consumer == "" {
		opts.Consumer = uuid.NewString()
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	return &Stream{
		client:   client,
		stream:   opts.Stream,
		group:    opts.Group,
		name:     opts.Consumer,
		blockDur: opts.Block,
	}
}

// EnsureGroup creates the consumer group (and stream) if missing.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("ingest queue not configured")
	}
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return errors.Wrapf(err, "create group %s on %s", s.group, s.stream)
	}
	return nil
}

// Enqueue implements Queue.
func (s *Stream) Enqueue(ctx context.Context, task Task) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("ingest queue not configured")
	}
	stamp(&task)
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": data,
		},
	}).Err()
}

// Next implements Queue.
func (s *Stream) Next(ctx context.Context) (*Task, string, error) {
	if s == nil || s.client == nil {
		return nil, "", fmt.Errorf("ingest queue not configured")
	}
	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.name,
		Streams:  []string{s.stream, ">"},
		Count:    1,
		Block:    s.blockDur,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	for _, stream := range res {
		for _, msg := range stream.Messages {
			raw, ok := msg.Values["data"].(string)
			if !ok {
				// Unreadable entries are acked so they do not stay pending forever.
				_ = s.Ack(ctx, msg.ID)
				continue
			}
			var task Task
			if err := json.Unmarshal([]byte(raw), &task); err != nil {
				return nil, msg.ID, errors.Wrapf(err, "decode task %s", msg.ID)
			}
			return &task, msg.ID, nil
		}
	}
	return nil, "", nil
}

// Ack implements Queue.
func (s *Stream) Ack(ctx context.Context, receipt string) error {
	if s == nil || s.client == nil || receipt == "" {
		return nil
	}
	return s.client.XAck(ctx, s.stream, s.group, receipt).Err()
}
