// Package apiclient is the typed HTTP runtime for the document/chat AI
// service: bearer credential handling, envelope decoding, error
// normalization and Server-Sent-Event streaming.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every call when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config is the configuration surface of a Client.
type Config struct {
	// BaseURL is the service root, e.g. https://docai.example.com.
	BaseURL string
	// Timeout bounds every call unless overridden with WithTimeout.
	// A negative value disables it.
	Timeout time.Duration
	// Headers are merged into every request.
	Headers map[string]string
	// Token seeds the initial credential.
	Token string
	// OnError is invoked once per failed call, before the call returns.
	OnError func(*Error)
}

// Client dispatches requests against the service. It is safe for concurrent
// use; the credential is the only state shared between calls.
type Client struct {
	baseURL  string
	timeout  time.Duration
	headers  map[string]string
	onError  func(*Error)
	creds    Credentials
	http     *http.Client
	logger   zerolog.Logger
	observer Observer
}

// New constructs a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: base,
		timeout: timeout,
		headers: map[string]string{},
		onError: cfg.OnError,
		http:    &http.Client{},
		logger:  zerolog.Nop(),
	}
	for k, v := range cfg.Headers {
		c.headers[k] = v
	}
	if cfg.Token != "" {
		c.creds.Set(cfg.Token)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// BaseURL returns the request root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetCredential replaces the bearer token.
func (c *Client) SetCredential(token string) {
	c.creds.Set(token)
}

// Credential returns the bearer token and whether one is set.
func (c *Client) Credential() (string, bool) {
	return c.creds.Get()
}

// ClearCredential drops the bearer token.
func (c *Client) ClearCredential() {
	c.creds.Clear()
}

// Get issues a GET and decodes the payload into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Upload posts a multipart form.
func (c *Client) Upload(ctx context.Context, path string, form *Form, out any, opts ...CallOption) error {
	if form == nil {
		form = NewForm()
	}
	buf, contentType, err := form.encode()
	if err != nil {
		return c.fail(time.Now(), path, normalize(failure{
			kind:    KindNetwork,
			method:  http.MethodPost,
			url:     c.url(path, nil),
			message: "encode multipart form: " + err.Error(),
			cause:   err,
		}))
	}
	return c.dispatch(ctx, http.MethodPost, path, requestBody{reader: buf, contentType: contentType, length: int64(buf.Len())}, out, opts)
}

// Do issues a request with an optional JSON body and decodes the payload
// into out. out may be nil, *json.RawMessage, *[]byte, *string or any value
// accepted by json.Unmarshal.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...CallOption) error {
	payload := requestBody{}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.fail(time.Now(), path, normalize(failure{
				kind:    KindNetwork,
				method:  method,
				url:     c.url(path, nil),
				message: "encode request body: " + err.Error(),
				cause:   err,
			}))
		}
		payload = requestBody{reader: bytes.NewReader(data), contentType: "application/json", length: int64(len(data))}
	}
	return c.dispatch(ctx, method, path, payload, out, opts)
}

type requestBody struct {
	reader      io.Reader
	contentType string
	length      int64
}

func (c *Client) dispatch(ctx context.Context, method, path string, body requestBody, out any, opts []CallOption) error {
	call := c.callOptions(opts)
	if call.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.timeout)
		defer cancel()
	}
	target := c.url(path, call.query)
	start := time.Now()

	req, err := c.newRequest(ctx, method, target, body, call)
	if err != nil {
		return c.fail(start, path, normalize(failure{kind: KindNetwork, method: method, url: target, message: "build request: " + err.Error(), cause: err}))
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("method", method).Str("url", target).Msg("dispatching request")
	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(start, path, normalize(failure{kind: KindNetwork, method: method, url: target, cause: err}))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil || timedOut(ctx, err) {
			return c.fail(start, path, normalize(failure{kind: KindNetwork, method: method, url: target, cause: err}))
		}
		// The status line arrived, so the failure keeps the real status.
		return c.fail(start, path, normalize(failure{
			kind:       KindHTTP,
			method:     method,
			url:        target,
			status:     resp.StatusCode,
			statusText: statusText(resp),
			message:    "read response body: " + err.Error(),
			cause:      err,
		}))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return c.fail(start, path, normalize(failure{
			kind:       KindHTTP,
			method:     method,
			url:        target,
			status:     resp.StatusCode,
			statusText: statusText(resp),
			body:       raw,
		}))
	}

	decoded, err := DecodeBody(raw)
	if err != nil {
		return c.fail(start, path, c.envelopeFailure(method, target, resp, raw, nil, err))
	}
	if decoded.Failed() {
		return c.fail(start, path, normalize(failure{
			kind:       KindEnvelope,
			method:     method,
			url:        target,
			status:     resp.StatusCode,
			statusText: statusText(resp),
			body:       raw,
			envelope:   decoded.Envelope,
		}))
	}

	payload := decoded.Payload()
	if call.validator != nil {
		if err := call.validator.Validate(payload); err != nil {
			return c.fail(start, path, c.envelopeFailure(method, target, resp, raw, decoded.Envelope, fmt.Errorf("response validation failed: %w", err)))
		}
	}
	if err := assign(out, payload); err != nil {
		return c.fail(start, path, c.envelopeFailure(method, target, resp, raw, decoded.Envelope, fmt.Errorf("decode response: %w", err)))
	}
	c.observeRequest(method, path, resp.StatusCode, "", start)
	return nil
}

func (c *Client) envelopeFailure(method, target string, resp *http.Response, raw []byte, env *Envelope, cause error) *Error {
	return normalize(failure{
		kind:       KindEnvelope,
		method:     method,
		url:        target,
		status:     resp.StatusCode,
		statusText: statusText(resp),
		body:       raw,
		envelope:   env,
		message:    cause.Error(),
		cause:      cause,
	})
}

func (c *Client) newRequest(ctx context.Context, method, target string, body requestBody, call callOptions) (*http.Request, error) {
	var reader io.Reader
	if body.reader != nil {
		reader = body.reader
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body.reader != nil {
		req.ContentLength = body.length
		req.Header.Set("Content-Type", body.contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range call.headers {
		req.Header.Set(k, v)
	}
	if auth := c.creds.authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req, nil
}

func (c *Client) callOptions(opts []CallOption) callOptions {
	call := callOptions{timeout: c.timeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&call)
		}
	}
	return call
}

func (c *Client) url(path string, query url.Values) string {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + query.Encode()
}

// fail reports e to the logger, the observer and the OnError hook, then
// returns it.
func (c *Client) fail(start time.Time, path string, e *Error) error {
	c.logger.Debug().
		Str("method", e.Method).
		Str("url", e.URL).
		Int("status", e.Status).
		Str("kind", string(e.Kind)).
		Err(e.Err).
		Msg(e.Message)
	c.observeRequest(e.Method, path, e.Status, e.Kind, start)
	if c.onError != nil {
		c.onError(e)
	}
	return e
}

func (c *Client) observeRequest(method, path string, status int, kind Kind, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(method, path, status, kind, time.Since(start))
}

// timedOut reports whether err was caused by an expired call timeout rather
// than by the caller.
func timedOut(ctx context.Context, err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	return errors.Is(context.Cause(ctx), ErrTimeout)
}
