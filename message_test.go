package vcursor

import (
	"strings"
	"testing"
	"time"
)

func TestMessageWireFormat(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := Message{Type: MsgCursorPosition, Cursor: &PeerCursor{
		ParticipantID: "bob#1",
		DisplayName:   "Bob",
		Selection:     Caret(LineColumn(1, 4)),
		ObservedAt:    at,
	}}
	buf, err := EncodeMessage(m)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	for _, want := range []string{`"type":"cursor_position"`, `"data":{`, `"kind":"line_column"`, `"participantId":"bob#1"`} {
		if !strings.Contains(string(buf), want) {
			t.Errorf("%s does not contain %s", buf, want)
		}
	}

	got, err := DecodeMessage(buf)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if got.Sender() != "bob#1" || got.Cursor.Selection != m.Cursor.Selection || !got.Cursor.ObservedAt.Equal(at) {
		t.Errorf("decoded %+v", got.Cursor)
	}
}

func TestDecodeMessageRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "not json", in: `{`},
		{name: "unknown type", in: `{"type":"wave"}`},
		{name: "cursor without payload", in: `{"type":"cursor_position"}`},
		{name: "refresh without payload", in: `{"type":"request_cursor_refresh"}`},
		{name: "departure without payload", in: `{"type":"participant_left"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMessage([]byte(tt.in)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestContentUpdateKinds(t *testing.T) {
	full := &ContentUpdate{DocumentSnapshot: "<p>x</p>"}
	light := &ContentUpdate{Delta: &Delta{}}
	if full.Lightweight() || !light.Lightweight() {
		t.Error("Lightweight misclassifies updates")
	}
	m := Message{Type: MsgRealtimeContentUpdate, Content: &ContentUpdate{ParticipantID: "c#1", Delta: &Delta{BaseHash: "h"}}}
	buf, err := EncodeMessage(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeMessage(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Sender() != "c#1" || got.Content.Delta == nil || got.Content.Delta.BaseHash != "h" {
		t.Errorf("decoded %+v", got.Content)
	}
}
