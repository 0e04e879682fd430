// Package protocol defines the voxway wire protocol: a single StreamEvent
// envelope serialized as JSON on websocket text frames, in both directions.
//
// Client audio is the one exception to the envelope rule — it arrives as raw
// binary frames and never passes through this package. Synthesised audio going
// the other way is framed inside a SERVER_AUDIO_RESPONSE event with the bytes
// base64-encoded in the payload.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminates StreamEvent payloads. The set is closed; decoding
// an unknown value is a protocol error.
type EventType string

const (
	// Client → server.
	ClientSessionStart EventType = "SYSTEM_CLIENT_SESSION_START"
	ClientTextInput    EventType = "CLIENT_TEXT_INPUT"
	ClientSpeechEnd    EventType = "CLIENT_SPEECH_END"
	StreamEnd          EventType = "STREAM_END"
	ConfigGet          EventType = "CONFIG_GET"
	ConfigSet          EventType = "CONFIG_SET"
	ModuleStatusGet    EventType = "MODULE_STATUS_GET"

	// Server → client.
	ServerSessionStart EventType = "SYSTEM_SERVER_SESSION_START"
	ServerTextResponse EventType = "SERVER_TEXT_RESPONSE"
	ServerAudioResponse EventType = "SERVER_AUDIO_RESPONSE"
	Error              EventType = "ERROR"
	ConfigSnapshot     EventType = "CONFIG_SNAPSHOT"
	ModuleStatusReport EventType = "MODULE_STATUS_REPORT"

	// Internal. ASRResult never crosses the wire; it is the event the audio
	// pipeline hands to the orchestrator when an utterance closes.
	ASRResult EventType = "ASR_RESULT"
)

// IsValid reports whether t is a recognised event type.
func (t EventType) IsValid() bool {
	switch t {
	case ClientSessionStart, ClientTextInput, ClientSpeechEnd, StreamEnd,
		ConfigGet, ConfigSet, ModuleStatusGet,
		ServerSessionStart, ServerTextResponse, ServerAudioResponse, Error,
		ConfigSnapshot, ModuleStatusReport, ASRResult:
		return true
	}
	return false
}

// StreamEvent is the sole wire message shape in both directions.
type StreamEvent struct {
	EventType EventType       `json:"event_type"`
	EventData json.RawMessage `json:"event_data,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	TagID     string          `json:"tag_id,omitempty"`
	Timestamp float64         `json:"timestamp"`
}

// TextPayload is the event_data shape of CLIENT_TEXT_INPUT, SERVER_TEXT_RESPONSE
// and the internal ASR_RESULT.
type TextPayload struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// AudioPayload is the event_data shape of SERVER_AUDIO_RESPONSE. Data carries
// the audio bytes base64-encoded.
type AudioPayload struct {
	Data    string `json:"data"`
	Format  string `json:"format"`
	IsFinal bool   `json:"is_final"`
}

// ErrorPayload is the event_data shape of ERROR.
type ErrorPayload struct {
	Text string `json:"text"`
}

// New builds a StreamEvent of the given type with payload marshalled into
// event_data and the timestamp set to now. A nil payload leaves event_data
// empty.
func New(t EventType, payload any) (StreamEvent, error) {
	ev := StreamEvent{
		EventType: t,
		Timestamp: Now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return StreamEvent{}, fmt.Errorf("protocol: marshal %s payload: %w", t, err)
		}
		ev.EventData = raw
	}
	return ev, nil
}

// Now returns the current time as float seconds since the Unix epoch, the
// timestamp representation used on the wire.
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// Encode serializes ev for a websocket text frame.
func Encode(ev StreamEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", ev.EventType, err)
	}
	return data, nil
}

// Decode parses a websocket text frame into a StreamEvent. It rejects frames
// that are not valid JSON or that carry an unknown event_type.
func Decode(data []byte) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return StreamEvent{}, fmt.Errorf("protocol: malformed event: %w", err)
	}
	if !ev.EventType.IsValid() {
		return StreamEvent{}, fmt.Errorf("protocol: unknown event type %q", ev.EventType)
	}
	return ev, nil
}

// Text unmarshals the event_data of a text-bearing event.
func (ev StreamEvent) Text() (TextPayload, error) {
	var p TextPayload
	if len(ev.EventData) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(ev.EventData, &p); err != nil {
		return p, fmt.Errorf("protocol: %s payload: %w", ev.EventType, err)
	}
	return p, nil
}

// Audio unmarshals the event_data of a SERVER_AUDIO_RESPONSE and decodes the
// base64 audio bytes.
func (ev StreamEvent) Audio() (AudioPayload, []byte, error) {
	var p AudioPayload
	if err := json.Unmarshal(ev.EventData, &p); err != nil {
		return p, nil, fmt.Errorf("protocol: audio payload: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return p, nil, fmt.Errorf("protocol: audio payload base64: %w", err)
	}
	return p, raw, nil
}

// NewAudioResponse wraps raw audio bytes in a SERVER_AUDIO_RESPONSE event.
func NewAudioResponse(audio []byte, format string, final bool) (StreamEvent, error) {
	return New(ServerAudioResponse, AudioPayload{
		Data:    base64.StdEncoding.EncodeToString(audio),
		Format:  format,
		IsFinal: final,
	})
}

// NewTextResponse wraps a text fragment in a SERVER_TEXT_RESPONSE event.
func NewTextResponse(text string, final bool) (StreamEvent, error) {
	return New(ServerTextResponse, TextPayload{Text: text, IsFinal: final})
}

// NewError wraps a human-readable message in an ERROR event.
func NewError(msg string) (StreamEvent, error) {
	return New(Error, ErrorPayload{Text: msg})
}
