package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// StreamState is the lifecycle state of a Stream.
type StreamState int

const (
	// StreamStreaming means more events may follow.
	StreamStreaming StreamState = iota
	// StreamDone means the sentinel was seen, the server closed the
	// stream or the consumer stopped early.
	StreamDone
	// StreamErrored means the transport failed; Err reports why.
	StreamErrored
)

func (s StreamState) String() string {
	switch s {
	case StreamStreaming:
		return "streaming"
	case StreamDone:
		return "done"
	case StreamErrored:
		return "errored"
	default:
		return "unknown"
	}
}

const (
	dataPrefix    = "data: "
	doneSentinel  = "[DONE]"
	readChunkSize = 4096
	maxErrorBody  = 64 << 10
)

// Stream is a forward-only sequence of Server-Sent-Event data payloads.
//
// Next advances to the next payload; Close releases the response body and
// may be called any number of times, the body is closed exactly once. A
// Stream is not safe for concurrent use: to stop a Next blocked in another
// goroutine, cancel the context the stream was opened with.
type Stream struct {
	body   io.ReadCloser
	reader io.Reader
	ctx    context.Context
	cancel context.CancelCauseFunc

	method string
	url    string
	path   string

	chunk   []byte
	pending []byte
	lines   []string
	readErr error

	state  StreamState
	event  string
	err    *Error
	events int

	started  time.Time
	onError  func(*Error)
	observer Observer

	closeOnce sync.Once
	closeErr  error
}

func newStream(ctx context.Context, cancel context.CancelCauseFunc, body io.ReadCloser) *Stream {
	return &Stream{
		body:    body,
		reader:  transform.NewReader(body, unicode.UTF8.NewDecoder()),
		ctx:     ctx,
		cancel:  cancel,
		chunk:   make([]byte, readChunkSize),
		state:   StreamStreaming,
		started: time.Now(),
	}
}

// NewStream decodes body as an event stream. The caller hands ownership of
// body to the Stream.
func NewStream(body io.ReadCloser) *Stream {
	return newStream(context.Background(), nil, body)
}

// Next advances to the next event payload. It returns false once the stream
// is done or errored; check Err to tell the two apart.
func (s *Stream) Next() bool {
	for s.state == StreamStreaming {
		if len(s.lines) > 0 {
			line := s.lines[0]
			s.lines = s.lines[1:]
			payload, ok := strings.CutPrefix(line, dataPrefix)
			if !ok {
				continue
			}
			if strings.TrimSpace(payload) == doneSentinel {
				s.finish(StreamDone, nil)
				return false
			}
			if payload == "" {
				continue
			}
			s.event = payload
			s.events++
			return true
		}
		s.fill()
	}
	return false
}

// Event returns the payload Next advanced to.
func (s *Stream) Event() string {
	return s.event
}

// State returns the current lifecycle state.
func (s *Stream) State() StreamState {
	return s.state
}

// Err returns the failure that ended the stream, if any.
func (s *Stream) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// Close stops the stream and releases the response body.
func (s *Stream) Close() error {
	s.finish(StreamDone, nil)
	return s.closeErr
}

// All ranges over the remaining payloads. A failure is yielded once as the
// last element. The stream is closed when the loop ends, however it ends.
func (s *Stream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Event(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield("", err)
		}
	}
}

// Collect drains the stream.
func (s *Stream) Collect() ([]string, error) {
	var events []string
	for event, err := range s.All() {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// fill reads one chunk into the decode buffer and moves complete lines into
// s.lines. Once the transport is exhausted it ends the stream; an unterminated
// trailing line is a truncated frame and is dropped.
func (s *Stream) fill() {
	if s.readErr != nil {
		if errors.Is(s.readErr, io.EOF) || s.cancelledByConsumer() {
			s.finish(StreamDone, nil)
			return
		}
		s.finish(StreamErrored, s.streamError(s.readErr))
		return
	}
	n, err := s.reader.Read(s.chunk)
	if n > 0 {
		s.pending = append(s.pending, s.chunk[:n]...)
		s.splitLines()
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.pending = nil
		}
		s.readErr = err
	}
}

func (s *Stream) splitLines() {
	for {
		idx := bytes.IndexByte(s.pending, '\n')
		if idx < 0 {
			return
		}
		line := bytes.TrimSuffix(s.pending[:idx], []byte("\r"))
		s.lines = append(s.lines, string(line))
		s.pending = s.pending[idx+1:]
	}
}

func (s *Stream) cancelledByConsumer() bool {
	if s.ctx == nil || !errors.Is(s.ctx.Err(), context.Canceled) {
		return false
	}
	return !errors.Is(context.Cause(s.ctx), ErrTimeout)
}

func (s *Stream) streamError(cause error) *Error {
	message := "stream interrupted: " + cause.Error()
	if s.ctx != nil && timedOut(s.ctx, cause) {
		message = "stream interrupted: " + ErrTimeout.Error()
	}
	return normalize(failure{
		kind:       KindStream,
		method:     s.method,
		url:        s.url,
		status:     http.StatusOK,
		statusText: http.StatusText(http.StatusOK),
		message:    message,
		cause:      cause,
	})
}

// finish moves the stream into a terminal state once. Later calls are no-ops.
func (s *Stream) finish(state StreamState, err *Error) {
	if s.state != StreamStreaming {
		return
	}
	s.state = state
	s.err = err
	s.event = ""
	s.release()
	if err != nil && s.onError != nil {
		s.onError(err)
	}
	if s.observer != nil {
		var kind Kind
		if err != nil {
			kind = err.Kind
		}
		s.observer.ObserveStream(s.path, s.events, kind, time.Since(s.started))
	}
}

func (s *Stream) release() {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
		if s.cancel != nil {
			s.cancel(context.Canceled)
		}
		s.pending = nil
		s.lines = nil
		s.chunk = nil
	})
}

// Stream opens an event stream. body, when non-nil, is sent as JSON. The
// call timeout bounds only the wait for response headers; afterwards the
// stream lives until it ends, ctx is cancelled or Close is called.
func (c *Client) Stream(ctx context.Context, method, path string, body any, opts ...CallOption) (*Stream, error) {
	call := c.callOptions(opts)
	target := c.url(path, call.query)
	start := time.Now()

	payload := requestBody{}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, c.fail(start, path, normalize(failure{kind: KindNetwork, method: method, url: target, message: "encode request body: " + err.Error(), cause: err}))
		}
		payload = requestBody{reader: bytes.NewReader(data), contentType: "application/json", length: int64(len(data))}
	}

	streamCtx, cancel := context.WithCancelCause(ctx)
	var timer *time.Timer
	if call.timeout > 0 {
		timer = time.AfterFunc(call.timeout, func() { cancel(ErrTimeout) })
	}

	req, err := c.newRequest(streamCtx, method, target, payload, call)
	if err != nil {
		cancel(err)
		return nil, c.fail(start, path, normalize(failure{kind: KindNetwork, method: method, url: target, message: "build request: " + err.Error(), cause: err}))
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.logger.Debug().Str("method", method).Str("url", target).Msg("opening stream")
	resp, err := c.http.Do(req)
	if timer != nil && !timer.Stop() && err == nil {
		resp.Body.Close()
		err = ErrTimeout
	}
	if err != nil {
		if timedOut(streamCtx, err) {
			err = ErrTimeout
		}
		cancel(err)
		return nil, c.fail(start, path, normalize(failure{kind: KindNetwork, method: method, url: target, cause: err}))
	}

	if resp.StatusCode >= http.StatusBadRequest || isJSON(resp.Header.Get("Content-Type")) {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel(context.Canceled)
		if readErr != nil {
			return nil, c.fail(start, path, normalize(failure{kind: KindNetwork, method: method, url: target, cause: readErr}))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, c.fail(start, path, normalize(failure{
				kind:       KindHTTP,
				method:     method,
				url:        target,
				status:     resp.StatusCode,
				statusText: statusText(resp),
				body:       raw,
			}))
		}
		decoded, _ := DecodeBody(raw)
		message := "expected an event stream, got " + resp.Header.Get("Content-Type")
		if decoded.Failed() {
			return nil, c.fail(start, path, normalize(failure{
				kind:       KindEnvelope,
				method:     method,
				url:        target,
				status:     resp.StatusCode,
				statusText: statusText(resp),
				body:       raw,
				envelope:   decoded.Envelope,
			}))
		}
		return nil, c.fail(start, path, normalize(failure{
			kind:       KindStream,
			method:     method,
			url:        target,
			status:     resp.StatusCode,
			statusText: statusText(resp),
			body:       raw,
			message:    message,
		}))
	}

	c.observeRequest(method, path, resp.StatusCode, "", start)
	stream := newStream(streamCtx, cancel, resp.Body)
	stream.method = method
	stream.url = target
	stream.path = path
	stream.onError = c.onError
	stream.observer = c.observer
	return stream, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
