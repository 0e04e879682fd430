package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()
	ev, err := New(ClientTextInput, TextPayload{Text: "hello", IsFinal: true})
	if err != nil {
		t.Fatal(err)
	}
	ev.SessionID = "s1"
	ev.TagID = "tag-1"

	data, err := Encode(ev)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	if got.EventType != ClientTextInput {
		t.Errorf("type = %q", got.EventType)
	}
	if got.SessionID != "s1" || got.TagID != "tag-1" {
		t.Errorf("ids = %q/%q", got.SessionID, got.TagID)
	}
	p, err := got.Text()
	if err != nil {
		t.Fatal(err)
	}
	if p.Text != "hello" || !p.IsFinal {
		t.Errorf("payload = %+v", p)
	}
	if got.Timestamp == 0 {
		t.Error("timestamp not set")
	}
}

func TestDecode_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
	}{
		{"not json", "binary garbage"},
		{"unknown type", `{"event_type":"MADE_UP_EVENT","timestamp":1}`},
		{"empty type", `{"timestamp":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEventType_IsValid(t *testing.T) {
	t.Parallel()
	valid := []EventType{
		ClientSessionStart, ClientTextInput, ClientSpeechEnd, StreamEnd,
		ConfigGet, ConfigSet, ModuleStatusGet,
		ServerSessionStart, ServerTextResponse, ServerAudioResponse, Error,
		ConfigSnapshot, ModuleStatusReport, ASRResult,
	}
	for _, typ := range valid {
		if !typ.IsValid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	if EventType("NOPE").IsValid() {
		t.Error("unknown type reported valid")
	}
}

func TestNewAudioResponse_RoundTrip(t *testing.T) {
	t.Parallel()
	raw := []byte{0x00, 0x01, 0xFE, 0xFF}
	ev, err := NewAudioResponse(raw, "pcm", true)
	if err != nil {
		t.Fatal(err)
	}
	if ev.EventType != ServerAudioResponse {
		t.Errorf("type = %q", ev.EventType)
	}

	p, decoded, err := ev.Audio()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Errorf("audio bytes = %v, want %v", decoded, raw)
	}
	if p.Format != "pcm" || !p.IsFinal {
		t.Errorf("payload = %+v", p)
	}

	// The wire form must carry base64, not raw bytes.
	wire, _ := Encode(ev)
	if bytes.Contains(wire, []byte{0xFE, 0xFF}) {
		t.Error("raw audio bytes leaked into the JSON frame")
	}
}

func TestNewError(t *testing.T) {
	t.Parallel()
	ev, err := NewError("something broke")
	if err != nil {
		t.Fatal(err)
	}
	if ev.EventType != Error {
		t.Errorf("type = %q", ev.EventType)
	}
	wire, _ := Encode(ev)
	if !strings.Contains(string(wire), "something broke") {
		t.Errorf("wire frame %s missing the message", wire)
	}
}

func TestNew_NilPayload(t *testing.T) {
	t.Parallel()
	ev, err := New(ConfigGet, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.EventData) != 0 {
		t.Errorf("event_data = %s, want empty", ev.EventData)
	}
	wire, _ := Encode(ev)
	if strings.Contains(string(wire), "event_data") {
		t.Errorf("empty event_data should be omitted from %s", wire)
	}
}

func TestText_EmptyEventData(t *testing.T) {
	t.Parallel()
	ev := StreamEvent{EventType: ClientSpeechEnd}
	p, err := ev.Text()
	if err != nil {
		t.Fatal(err)
	}
	if p.Text != "" || p.IsFinal {
		t.Errorf("payload = %+v, want zero value", p)
	}
}
