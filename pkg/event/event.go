package event

import (
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

// Event is the envelope carried by the buses. The payload is stored encoded
// so that subscribers decide how, and whether, to decode it.
type Event struct {
	// ID is a unique identifier for this event instance
	ID string `json:"id"`

	// Type is a dotted topic (e.g. "bci.control.left")
	Type string `json:"type"`

	// Source identifies the originating component
	Source string `json:"source"`

	// Timestamp indicates when the event was created
	Timestamp time.Time `json:"timestamp"`

	// Frame is the render frame the event belongs to, if any
	Frame int64 `json:"frame,omitempty"`

	// Data contains the JSON encoded payload. It is embedded verbatim when
	// the envelope itself is encoded.
	Data jsontext.Value `json:"data,omitempty"`

	// Metadata provides additional context for filtering
	Metadata map[string]string `json:"metadata,omitempty"`

	// SessionID groups every event of one play or calibration session
	SessionID string `json:"session_id,omitempty"`
}

// EventCodec defines how to serialize and deserialize event payloads.
type EventCodec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes payloads as JSON.
type JSONCodec struct{}

// Marshal converts a payload to JSON bytes.
func (c JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes into a payload.
func (c JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewEvent creates an event with a generated ID and the current time.
func NewEvent(eventType, source string, payload any, codec EventCodec) (*Event, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
		Metadata:  make(map[string]string),
	}, nil
}

// MustEvent is NewEvent with the JSON codec for payloads that are known to
// encode. It panics otherwise.
func MustEvent(eventType, source string, payload any) *Event {
	evt, err := NewEvent(eventType, source, payload, JSONCodec{})
	if err != nil {
		panic(err)
	}
	return evt
}

// WithMetadata adds a metadata key-value pair to the event.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// WithFrame sets the frame number.
func (e *Event) WithFrame(frame int64) *Event {
	e.Frame = frame
	return e
}

// WithSession tags the event with a session id.
func (e *Event) WithSession(id string) *Event {
	e.SessionID = id
	return e
}

// DecodePayload deserializes the event data into v.
func (e *Event) DecodePayload(v any, codec EventCodec) error {
	if len(e.Data) == 0 {
		return nil
	}
	return codec.Unmarshal(e.Data, v)
}
