package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the uniform response wrapper used by the service.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     *EnvelopeDetail `json:"error,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// EnvelopeDetail carries the machine-readable part of a failed envelope.
type EnvelopeDetail struct {
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// BodyKind distinguishes enveloped bodies from raw payloads.
type BodyKind int

const (
	// BodyRaw is any body that is not an object with a boolean "success" key.
	BodyRaw BodyKind = iota
	// BodyEnvelope is a body shaped like Envelope.
	BodyEnvelope
)

func (k BodyKind) String() string {
	if k == BodyEnvelope {
		return "envelope"
	}
	return "raw"
}

// Body is a response body after envelope detection.
type Body struct {
	Kind     BodyKind
	Envelope *Envelope
	Raw      []byte
}

// DecodeBody classifies raw as an Envelope or a raw payload. Raw payloads are
// kept verbatim; only an object carrying a boolean "success" key is treated as
// an envelope.
func DecodeBody(raw []byte) (Body, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Body{Kind: BodyRaw, Raw: raw}, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Body{Kind: BodyRaw, Raw: raw}, nil
	}
	flag, ok := probe["success"]
	if !ok {
		return Body{Kind: BodyRaw, Raw: raw}, nil
	}
	flag = bytes.TrimSpace(flag)
	if !bytes.Equal(flag, []byte("true")) && !bytes.Equal(flag, []byte("false")) {
		return Body{Kind: BodyRaw, Raw: raw}, nil
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Body{}, fmt.Errorf("decode envelope: %w", err)
	}
	return Body{Kind: BodyEnvelope, Envelope: &env, Raw: raw}, nil
}

// Failed reports whether the body is an envelope with success=false.
func (b Body) Failed() bool {
	return b.Kind == BodyEnvelope && b.Envelope != nil && !b.Envelope.Success
}

// Payload returns the logical result: the envelope data for enveloped bodies
// (nil when absent) and the untouched body otherwise.
func (b Body) Payload() []byte {
	if b.Kind == BodyEnvelope {
		if b.Envelope == nil || isJSONNull(b.Envelope.Data) {
			return nil
		}
		return b.Envelope.Data
	}
	return b.Raw
}

func isJSONNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// assign stores payload into out. Byte-oriented targets receive the payload
// verbatim; a *string receives non-JSON text as is.
func assign(out any, payload []byte) error {
	switch target := out.(type) {
	case nil:
		return nil
	case *json.RawMessage:
		*target = append((*target)[:0], payload...)
		return nil
	case *[]byte:
		*target = append((*target)[:0], payload...)
		return nil
	case *string:
		if len(payload) == 0 {
			*target = ""
			return nil
		}
		if err := json.Unmarshal(payload, target); err != nil {
			*target = string(payload)
		}
		return nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}
