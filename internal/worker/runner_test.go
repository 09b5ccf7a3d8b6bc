package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/oremus-labs/docai-console/internal/events"
	"github.com/oremus-labs/docai-console/internal/queue"
	"github.com/oremus-labs/docai-console/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *store.Store
	queue *queue.Memory
	bus   *events.Bus
	r     *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "docai.db"), "sqlite")
	require.NoError(t, err)
	bus := events.NewBus(events.Options{Logger: zerolog.Nop()})
	t.Cleanup(func() {
		bus.Close()
		_ = st.Close()
	})
	q := queue.NewMemory(8)
	return &fixture{
		store: st,
		queue: q,
		bus:   bus,
		r:     New(Options{Store: st, Queue: q, Bus: bus, Logger: zerolog.Nop()}),
	}
}

func (f *fixture) upload(t *testing.T, id, contentType string, content []byte) {
	t.Helper()
	doc := &store.Document{ID: id, Name: id + ".txt", ContentType: contentType, Status: StatusUploaded, Owner: "admin"}
	require.NoError(t, f.store.CreateDocument(context.Background(), doc, content))
}

func (f *fixture) status(t *testing.T, id string) string {
	t.Helper()
	doc, err := f.store.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc.Status
}

func TestProcessMarksReady(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "doc-1", "text/plain; charset=utf-8", []byte("quarterly numbers"))

	ch, unsubscribe, err := f.bus.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, f.r.Process(context.Background(), queue.Task{ID: "t1", DocumentID: "doc-1"}))
	assert.Equal(t, StatusReady, f.status(t, "doc-1"))

	select {
	case evt := <-ch:
		assert.Equal(t, events.DocumentReady, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("no ready event")
	}
}

func TestProcessMarksFailed(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		content     []byte
		reason      string
	}{
		{"empty", "text/plain", nil, "document is empty"},
		{"bad utf8", "text/plain", []byte{0xff, 0xfe, 'a'}, "not valid UTF-8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.upload(t, "doc", tc.contentType, tc.content)
			ch, unsubscribe, err := f.bus.Subscribe(context.Background())
			require.NoError(t, err)
			defer unsubscribe()

			require.NoError(t, f.r.Process(context.Background(), queue.Task{DocumentID: "doc"}))
			assert.Equal(t, StatusFailed, f.status(t, "doc"))

			evt := <-ch
			assert.Equal(t, events.DocumentFailed, evt.Type)
			data, ok := evt.Data.(map[string]interface{})
			require.True(t, ok)
			assert.Contains(t, data["reason"], tc.reason)
		})
	}
}

func TestProcessSkipsDeletedDocument(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.r.Process(context.Background(), queue.Task{DocumentID: "missing"}))
}

func TestBinaryContentIsReady(t *testing.T) {
	assert.Empty(t, inspect("application/pdf", []byte{0xff, 0x00, 0x10}))
}

func TestRunConsumesQueue(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "doc-a", "text/plain", []byte("alpha"))
	f.upload(t, "doc-b", "text/plain", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.r.Run(ctx) }()

	require.NoError(t, f.queue.Enqueue(ctx, queue.Task{DocumentID: "doc-a"}))
	require.NoError(t, f.queue.Enqueue(ctx, queue.Task{DocumentID: "doc-b"}))

	require.Eventually(t, func() bool {
		return f.status(t, "doc-a") == StatusReady && f.status(t, "doc-b") == StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
