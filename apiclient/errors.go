package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// Kind classifies a failed call.
type Kind string

const (
	// KindNetwork means no response reached the client (status 0).
	KindNetwork Kind = "network"
	// KindHTTP means a response arrived with status >= 400.
	KindHTTP Kind = "http"
	// KindEnvelope means status < 400 but the body was unusable: an envelope
	// with success=false, an undecodable payload or a rejected validation.
	KindEnvelope Kind = "envelope"
	// KindStream means the event stream failed after it was opened.
	KindStream Kind = "stream"
)

const defaultFailureMessage = "request failed"

// ErrTimeout is the cause attached to calls aborted by the client timeout.
var ErrTimeout = errors.New("request timed out")

// Error is the single failure type returned by Client. It is built by the
// normalizer and must be treated as read-only.
type Error struct {
	Kind       Kind
	Status     int
	StatusText string
	Method     string
	URL        string
	Message    string
	Code       string
	Details    any
	// Response is the decoded response body, if one was received.
	Response  any
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "api error"
	}
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteByte(' ')
	}
	b.WriteString(e.URL)
	b.WriteString(": ")
	if e.Status > 0 {
		b.WriteString(strconv.Itoa(e.Status))
		if e.StatusText != "" {
			b.WriteByte(' ')
			b.WriteString(e.StatusText)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == http.StatusUnauthorized
}

// IsNetwork reports whether err is a failure where no response was received.
func IsNetwork(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindNetwork
}

// failure is everything the normalizer may know about a failed call.
type failure struct {
	kind       Kind
	method     string
	url        string
	status     int
	statusText string
	body       []byte
	envelope   *Envelope
	message    string
	cause      error
}

// normalize turns a failure into an *Error. It never fails itself.
func normalize(f failure) *Error {
	if existing, ok := AsError(f.cause); ok {
		return existing
	}
	e := &Error{
		Kind:       f.kind,
		Status:     f.status,
		StatusText: f.statusText,
		Method:     f.method,
		URL:        f.url,
		Err:        f.cause,
	}
	if e.Kind == KindNetwork {
		e.Status = 0
		e.StatusText = ""
		e.Message = networkMessage(f.cause)
		if f.message != "" {
			e.Message = f.message
		}
		return e
	}
	if e.StatusText == "" && e.Status > 0 {
		e.StatusText = http.StatusText(e.Status)
	}
	if len(bytes.TrimSpace(f.body)) > 0 {
		e.Response = decodeResponse(f.body)
	}
	env := f.envelope
	if env == nil && len(f.body) > 0 {
		if body, err := DecodeBody(f.body); err == nil && body.Kind == BodyEnvelope {
			env = body.Envelope
		}
	}
	if env != nil {
		e.Message = env.Message
		e.RequestID = env.RequestID
		if env.Error != nil {
			e.Code = env.Error.Code
			e.Details = env.Error.Details
		}
	}
	if f.message != "" {
		e.Message = f.message
	}
	if e.Message == "" {
		e.Message = messageFromResponse(e.Response)
	}
	if e.Message == "" && e.Kind == KindHTTP {
		e.Message = e.StatusText
	}
	if e.Message == "" && f.cause != nil {
		e.Message = f.cause.Error()
	}
	if e.Message == "" {
		e.Message = defaultFailureMessage
	}
	return e
}

func networkMessage(cause error) string {
	switch {
	case cause == nil:
		return "network error"
	case errors.Is(cause, ErrTimeout), errors.Is(cause, context.DeadlineExceeded):
		return ErrTimeout.Error()
	case errors.Is(cause, context.Canceled):
		return "request canceled"
	}
	var netErr net.Error
	if errors.As(cause, &netErr) && netErr.Timeout() {
		return ErrTimeout.Error()
	}
	return "network error: " + cause.Error()
}

func decodeResponse(body []byte) any {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return strings.TrimSpace(string(body))
	}
	return decoded
}

// messageFromResponse picks a human message out of common non-enveloped error
// bodies such as {"error": "..."} or {"detail": "..."}.
func messageFromResponse(resp any) string {
	obj, ok := resp.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"message", "error", "detail"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func statusText(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if text := strings.TrimPrefix(resp.Status, prefix); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
