package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	client, err := New(cfg, opts...)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"", "localhost:8080", "/api/v1", "http://"} {
		_, err := New(Config{BaseURL: base})
		assert.Error(t, err, base)
	}
}

func TestEnvelopeSuccessResolvesToData(t *testing.T) {
	t.Parallel()

	values := []string{`42`, `"text"`, `{"nested":{"ok":true}}`, `[1,"two",null]`, `true`}
	for _, value := range values {
		value := value
		t.Run(value, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"success":true,"data":`+value+`,"request_id":"r-1"}`)
			}, Config{})

			var out json.RawMessage
			require.NoError(t, client.Get(context.Background(), "/api/v1/thing", &out))
			assert.JSONEq(t, value, string(out))
		})
	}
}

func TestEnvelopeSuccessWithoutData(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true}`)
	}, Config{})

	out := map[string]any{"untouched": true}
	require.NoError(t, client.Post(context.Background(), "/api/v1/ping", map[string]string{}, &out))
	assert.Equal(t, map[string]any{"untouched": true}, out)
}

func TestEnvelopeFailureRaisesWithMessage(t *testing.T) {
	t.Parallel()

	messages := []string{"document not found", "quota exceeded", "ünïcode ✓"}
	for _, message := range messages {
		message := message
		t.Run(message, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				body, _ := json.Marshal(map[string]any{
					"success": false,
					"message": message,
					"error":   map[string]any{"code": "E42", "details": map[string]any{"field": "name"}},
				})
				writeJSON(w, http.StatusOK, string(body))
			}, Config{})

			err := client.Get(context.Background(), "/api/v1/thing", nil)
			apiErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindEnvelope, apiErr.Kind)
			assert.Equal(t, message, apiErr.Message)
			assert.Equal(t, http.StatusOK, apiErr.Status)
			assert.Equal(t, "E42", apiErr.Code)
			assert.Equal(t, map[string]any{"field": "name"}, apiErr.Details)
			assert.NotNil(t, apiErr.Response)
		})
	}
}

func TestEnvelopeFailureWithoutMessageUsesFallback(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":false}`)
	}, Config{})

	err := client.Get(context.Background(), "/x", nil)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, defaultFailureMessage, apiErr.Message)
}

func TestRawPayloadPassesThrough(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id": "x"}`)
	}, Config{})

	var out json.RawMessage
	require.NoError(t, client.Get(context.Background(), "/raw", &out))
	assert.Equal(t, `{"id": "x"}`, string(out))
}

func TestBearerHeaderFollowsCredential(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		headers []string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Get("Authorization"))
		mu.Unlock()
		writeJSON(w, http.StatusOK, `{"success":true}`)
	}, Config{})
	ctx := context.Background()

	require.NoError(t, client.Get(ctx, "/a", nil))
	client.SetCredential("abc123")
	require.NoError(t, client.Get(ctx, "/b", nil))
	require.NoError(t, client.Post(ctx, "/c", map[string]int{"n": 1}, nil))
	require.NoError(t, client.Upload(ctx, "/d", NewForm().AddField("k", "v"), nil))
	client.ClearCredential()
	require.NoError(t, client.Delete(ctx, "/e", nil))

	assert.Equal(t, []string{"", "Bearer abc123", "Bearer abc123", "Bearer abc123", ""}, headers)
}

func TestHeadersAreMerged(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "console", r.Header.Get("X-Client"))
		assert.Equal(t, "call", r.Header.Get("X-Trace"))
		assert.Equal(t, "override", r.Header.Get("X-Mode"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, `{"success":true}`)
	}, Config{Headers: map[string]string{"X-Client": "console", "X-Mode": "default"}})

	err := client.Get(context.Background(), "/h", nil,
		WithHeader("X-Trace", "call"),
		WithHeaders(map[string]string{"X-Mode": "override"}),
		WithQuery(map[string][]string{"page": {"2"}}),
	)
	require.NoError(t, err)
}

func TestJSONBodyIsEncoded(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"title":"renamed"}`, string(body))
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"title":"renamed"}}`)
	}, Config{})

	var out struct {
		Title string `json:"title"`
	}
	require.NoError(t, client.Patch(context.Background(), "/conversations/1", map[string]string{"title": "renamed"}, &out))
	assert.Equal(t, "renamed", out.Title)
}

func TestUploadSendsMultipart(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "notes", r.FormValue("folder"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"success":true,"data":{"name":%q,"size":%d}}`, header.Filename, len(content)))
	}, Config{})

	form := NewForm().AddField("folder", "notes").AddFile("file", "report.txt", strings.NewReader("hello world"))
	var out struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	require.NoError(t, client.Upload(context.Background(), "/documents/upload", form, &out))
	assert.Equal(t, "report.txt", out.Name)
	assert.Equal(t, 11, out.Size)
}

func TestHTTPErrorStatusIsAuthoritative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		message string
		code    string
	}{
		{name: "enveloped", status: http.StatusNotFound, body: `{"success":false,"message":"no such document","error":{"code":"NOT_FOUND"}}`, message: "no such document", code: "NOT_FOUND"},
		{name: "raw error field", status: http.StatusUnauthorized, body: `{"error":"unauthorized"}`, message: "unauthorized"},
		{name: "raw detail field", status: http.StatusUnprocessableEntity, body: `{"detail":"bad input"}`, message: "bad input"},
		{name: "success shaped", status: http.StatusBadGateway, body: `{"success":true,"data":1}`, message: "Bad Gateway"},
		{name: "plain text", status: http.StatusInternalServerError, body: `boom`, message: "Internal Server Error"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}, Config{})

			var out any
			err := client.Get(context.Background(), "/fail", &out)
			apiErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindHTTP, apiErr.Kind)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, http.StatusText(tc.status), apiErr.StatusText)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.True(t, strings.HasSuffix(apiErr.URL, "/fail"))
			assert.Nil(t, out)
		})
	}
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, err := New(Config{BaseURL: base, Timeout: 2 * time.Second})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/api/v1/health", nil)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, apiErr.Kind)
	assert.Equal(t, 0, apiErr.Status)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, base+"/api/v1/health", apiErr.URL)
}

func TestTimeoutAbortsRequest(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}, Config{Timeout: 5 * time.Second})

	start := time.Now()
	err := client.Get(context.Background(), "/slow", nil, WithTimeout(50*time.Millisecond))
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, apiErr.Kind)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, ErrTimeout.Error(), apiErr.Message)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 4*time.Second)
}

type brokenBodyTransport struct{}

func (brokenBodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := io.MultiReader(strings.NewReader(`{"success":true,"da`), errorReader{errors.New("connection reset by peer")})
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(body),
		Request:    req,
	}, nil
}

type errorReader struct{ err error }

func (r errorReader) Read([]byte) (int, error) { return 0, r.err }

func TestBodyReadFailureKeepsStatus(t *testing.T) {
	t.Parallel()

	client, err := New(Config{BaseURL: "http://docai.test"}, WithHTTPClient(&http.Client{Transport: brokenBodyTransport{}}))
	require.NoError(t, err)

	err = client.Get(context.Background(), "/api/v1/health", nil)
	apiErr := mustAPIError(t, err)
	assert.Equal(t, KindHTTP, apiErr.Kind)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.Contains(t, apiErr.Message, "read response body")
	assert.Contains(t, apiErr.Message, "connection reset by peer")
	assert.False(t, IsNetwork(err))
}

func TestOnErrorRunsOncePerFailure(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []*Error
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			writeJSON(w, http.StatusOK, `{"success":true,"data":1}`)
		case "/denied":
			writeJSON(w, http.StatusUnauthorized, `{"success":false,"message":"token expired"}`)
		default:
			writeJSON(w, http.StatusOK, `{"success":false,"message":"nope"}`)
		}
	}, Config{OnError: func(e *Error) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	}})
	ctx := context.Background()

	require.NoError(t, client.Get(ctx, "/ok", nil))
	assert.Empty(t, seen)

	err := client.Get(ctx, "/denied", nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	require.Len(t, seen, 1)
	assert.Same(t, seen[0], mustAPIError(t, err))

	require.Error(t, client.Get(ctx, "/other", nil))
	require.Len(t, seen, 2)
	assert.Equal(t, KindEnvelope, seen[1].Kind)
}

func TestOnErrorCanClearCredentialOnUnauthorized(t *testing.T) {
	t.Parallel()

	var client *Client
	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":"unauthorized"}`)
	}, Config{Token: "stale", OnError: func(e *Error) {
		if e.Status == http.StatusUnauthorized {
			client.ClearCredential()
		}
	}})

	require.Error(t, client.Get(context.Background(), "/me", nil))
	_, ok := client.Credential()
	assert.False(t, ok)
}

func TestValidatorRejectsPayload(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"id":""}}`)
	}, Config{})

	var got json.RawMessage
	validator := ValidatorFunc(func(payload json.RawMessage) error {
		got = payload
		return errors.New("id must not be empty")
	})
	err := client.Get(context.Background(), "/doc", nil, WithValidator(validator))
	apiErr := mustAPIError(t, err)
	assert.Equal(t, KindEnvelope, apiErr.Kind)
	assert.Contains(t, apiErr.Message, "id must not be empty")
	assert.JSONEq(t, `{"id":""}`, string(got))
}

func TestUndecodablePayloadIsEnvelopeError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"data":"a string"}`)
	}, Config{})

	var out struct{ ID string }
	err := client.Get(context.Background(), "/doc", &out)
	apiErr := mustAPIError(t, err)
	assert.Equal(t, KindEnvelope, apiErr.Kind)
	assert.Equal(t, http.StatusOK, apiErr.Status)
}

type recordingObserver struct {
	mu       sync.Mutex
	requests []string
	streams  []string
}

func (o *recordingObserver) ObserveRequest(method, path string, status int, kind Kind, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, fmt.Sprintf("%s %s %d %s", method, path, status, kind))
}

func (o *recordingObserver) ObserveStream(path string, events int, kind Kind, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streams = append(o.streams, fmt.Sprintf("%s %d %s", path, events, kind))
}

func TestObserverSeesOutcomes(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			writeJSON(w, http.StatusBadRequest, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success":true}`)
	}, Config{}, WithObserver(obs))

	require.NoError(t, client.Get(context.Background(), "/good", nil))
	require.Error(t, client.Get(context.Background(), "/bad", nil))
	assert.Equal(t, []string{"GET /good 200 ", "GET /bad 400 http"}, obs.requests)
}

func mustAPIError(t *testing.T, err error) *Error {
	t.Helper()
	apiErr, ok := AsError(err)
	require.True(t, ok, "expected *Error, got %T", err)
	return apiErr
}
