package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MaxFrameSize bounds a single inbound frame.
const MaxFrameSize = 64 * 1024

// Envelope holds the fields every message carries in both directions.
type Envelope struct {
	Kind          Kind   `json:"type"`
	Timestamp     int64  `json:"timestamp"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Header returns the envelope itself so embedding types satisfy Message.
func (e *Envelope) Header() *Envelope { return e }

// Message is implemented by every concrete message type.
type Message interface {
	Kind() Kind
	Header() *Envelope
}

// ClientMessage is a message that only a client may originate.
type ClientMessage interface {
	Message
	clientMessage()
}

// ServerMessage is a message that only the server may originate.
type ServerMessage interface {
	Message
	serverMessage()
}

// NowMillis returns t as milliseconds since the Unix epoch.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// Encode stamps the message kind, fills a zero timestamp with the current
// time and returns the JSON frame.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil message")
	}
	h := m.Header()
	h.Kind = m.Kind()
	if h.Timestamp == 0 {
		h.Timestamp = NowMillis(time.Now())
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", h.Kind, err)
	}
	return data, nil
}

// ParseServer decodes a server-origin frame. It is the client-side
// counterpart of ParseClient: the envelope must be present and the kind must
// belong to the server set.
func ParseServer(data []byte) (ServerMessage, error) {
	if len(data) > MaxFrameSize {
		return nil, reject("", fmt.Sprintf("frame exceeds %d bytes", MaxFrameSize))
	}
	tree, err := decodeTree(data)
	if err != nil {
		return nil, err
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, reject("", "message must be a JSON object")
	}
	f := newFields(obj)
	env := f.envelope()
	if f.err != nil {
		return nil, f.err
	}
	factory, ok := serverKinds[env.Kind]
	if !ok {
		return nil, reject("type", fmt.Sprintf("unknown server message kind %q", env.Kind))
	}
	msg := factory()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, reject("", err.Error())
	}
	return msg, nil
}

func decodeTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, reject("", "malformed JSON: "+err.Error())
	}
	if dec.More() {
		return nil, reject("", "trailing data after JSON value")
	}
	return v, nil
}
