// Package worker ingests uploaded documents pulled from the ingest queue.
package worker

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oremus-labs/docai-console/internal/events"
	"github.com/oremus-labs/docai-console/internal/queue"
	"github.com/oremus-labs/docai-console/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Document statuses written by the worker.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Options configure the ingest worker.
type Options struct {
	Store  *store.Store
	Queue  queue.Queue
	Bus    *events.Bus
	Logger zerolog.Logger
	// RetryDelay is the pause after a queue read error.
	RetryDelay time.Duration
}

// Runner consumes ingest tasks until its context ends.
type Runner struct {
	store      *store.Store
	queue      queue.Queue
	bus        *events.Bus
	logger     zerolog.Logger
	retryDelay time.Duration
}

// New creates a new Runner.
func New(opts Options) *Runner {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Runner{
		store:      opts.Store,
		queue:      opts.Queue,
		bus:        opts.Bus,
		logger:     opts.Logger,
		retryDelay: opts.RetryDelay,
	}
}

// Run pulls tasks until ctx is cancelled. It returns nil on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().Msg("ingest worker started")
	for {
		task, receipt, err := r.queue.Next(ctx)
		if ctx.Err() != nil {
			r.logger.Info().Msg("ingest worker stopped")
			return nil
		}
		if err != nil {
			r.logger.Warn().Err(err).Msg("ingest queue read failed")
			if receipt != "" {
				_ = r.queue.Ack(ctx, receipt)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.retryDelay):
			}
			continue
		}
		if task == nil {
			continue
		}
		if err := r.Process(ctx, *task); err != nil {
			r.logger.Error().Err(err).Str("document", task.DocumentID).Msg("ingest failed")
		}
		if err := r.queue.Ack(ctx, receipt); err != nil {
			r.logger.Warn().Err(err).Str("receipt", receipt).Msg("ingest ack failed")
		}
	}
}

// Process ingests one document: it is marked processing, inspected and then
// marked ready or failed. A document deleted before its turn is skipped.
func (r *Runner) Process(ctx context.Context, task queue.Task) error {
	logger := r.logger.With().Str("document", task.DocumentID).Str("task", task.ID).Logger()

	doc, err := r.store.GetDocument(ctx, task.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug().Msg("document gone before ingest")
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.store.UpdateDocumentStatus(ctx, doc.ID, StatusProcessing); err != nil {
		return err
	}

	content, err := r.store.GetDocumentContent(ctx, doc.ID)
	if err != nil {
		return err
	}
	status, eventType := StatusReady, events.DocumentReady
	reason := inspect(doc.ContentType, content)
	if reason != "" {
		status, eventType = StatusFailed, events.DocumentFailed
	}
	if err := r.store.UpdateDocumentStatus(ctx, doc.ID, status); err != nil {
		return err
	}

	data := map[string]interface{}{
		"id":     doc.ID,
		"name":   doc.Name,
		"status": status,
	}
	if reason != "" {
		data["reason"] = reason
	}
	if r.bus != nil {
		if err := r.bus.Publish(ctx, events.Event{Type: eventType, Data: data}); err != nil {
			logger.Warn().Err(err).Msg("publish failed")
		}
	}
	logger.Info().Str("status", status).Int64("bytes", doc.Size).Dur("queued", time.Since(task.EnqueuedAt)).Msg("document ingested")
	return nil
}

// inspect returns why content cannot be ingested, or "" when it can.
func inspect(contentType string, content []byte) string {
	if len(content) == 0 {
		return "document is empty"
	}
	if strings.HasPrefix(contentType, "text/") && !utf8.Valid(content) {
		return "text document is not valid UTF-8"
	}
	return ""
}
