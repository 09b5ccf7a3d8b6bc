package apiclient

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Option customizes a Client at construction time.
type Option func(c *Client)

// WithHTTPClient supplies a custom HTTP client. Its own Timeout is left as is;
// the client timeout from Config is applied per request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver registers an observer notified after every call and stream.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// Observer receives call outcomes. Kind is empty for successful calls.
type Observer interface {
	ObserveRequest(method, path string, status int, kind Kind, elapsed time.Duration)
	ObserveStream(path string, events int, kind Kind, elapsed time.Duration)
}

// ResponseValidator checks a decoded payload before it is handed to the
// caller. A non-nil error fails the call with KindEnvelope.
type ResponseValidator interface {
	Validate(payload json.RawMessage) error
}

// ValidatorFunc adapts a function to ResponseValidator.
type ValidatorFunc func(payload json.RawMessage) error

// Validate calls f.
func (f ValidatorFunc) Validate(payload json.RawMessage) error {
	return f(payload)
}

// CallOption customizes a single call.
type CallOption func(o *callOptions)

type callOptions struct {
	headers   map[string]string
	timeout   time.Duration
	validator ResponseValidator
	query     url.Values
}

// WithHeader sets a header on a single call.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// WithHeaders merges headers into a single call.
func WithHeaders(headers map[string]string) CallOption {
	return func(o *callOptions) {
		for k, v := range headers {
			WithHeader(k, v)(o)
		}
	}
}

// WithTimeout overrides the client timeout for a single call. Zero or a
// negative value disables the timeout for that call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// WithValidator validates the payload of a single call.
func WithValidator(v ResponseValidator) CallOption {
	return func(o *callOptions) {
		o.validator = v
	}
}

// WithQuery appends query parameters to a single call.
func WithQuery(q url.Values) CallOption {
	return func(o *callOptions) {
		if o.query == nil {
			o.query = url.Values{}
		}
		for k, vs := range q {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}
