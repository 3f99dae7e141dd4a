package vcursor

import (
	"encoding/json"
	"fmt"
	"time"
)

type MessageType string

const (
	MsgCursorPosition          MessageType = "cursor_position"
	MsgRequestCursorRefresh    MessageType = "request_cursor_refresh"
	MsgRequestCursorRefreshAll MessageType = "request_cursor_refresh_all"
	MsgRealtimeContentUpdate   MessageType = "realtime_content_update"
	MsgParticipantLeft         MessageType = "participant_left"
)

// Message is the envelope exchanged over a Channel. Exactly one payload
// field is set, according to Type.
type Message struct {
	Type      MessageType     `json:"type"`
	Cursor    *PeerCursor     `json:"data,omitempty"`
	Refresh   *RefreshRequest `json:"refresh,omitempty"`
	Content   *ContentUpdate  `json:"content,omitempty"`
	Departure *Departure      `json:"departure,omitempty"`
}

// RefreshRequest asks a participant (or everyone, for the -all variant) to
// re-announce its cursor.
type RefreshRequest struct {
	TargetParticipantID string    `json:"targetParticipantId,omitempty"`
	RequesterID         string    `json:"requesterId"`
	Reason              string    `json:"reason"`
	Timestamp           time.Time `json:"timestamp"`
}

// ContentUpdate carries a remote document change. A non-empty
// DocumentSnapshot replaces the whole document; otherwise Delta is a
// lightweight realtime patch.
type ContentUpdate struct {
	UserID           string            `json:"userId"`
	ParticipantID    string            `json:"participantId"`
	DocumentSnapshot string            `json:"documentSnapshot,omitempty"`
	Delta            *Delta            `json:"delta,omitempty"`
	CursorPosition   *SelectionAddress `json:"cursorPosition,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Lightweight reports whether u is an incremental patch.
func (u *ContentUpdate) Lightweight() bool {
	return u.DocumentSnapshot == "" && u.Delta != nil
}

// Departure announces that a participant left.
type Departure struct {
	ParticipantID string    `json:"participantId"`
	Timestamp     time.Time `json:"timestamp"`
}

// EncodeMessage marshals m for the wire.
func EncodeMessage(m Message) ([]byte, error) {
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Type, err)
	}
	return buf, nil
}

// DecodeMessage unmarshals a wire message and checks that its payload
// matches its type.
func DecodeMessage(buf []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(buf, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	var ok bool
	switch m.Type {
	case MsgCursorPosition:
		ok = m.Cursor != nil
	case MsgRequestCursorRefresh, MsgRequestCursorRefreshAll:
		ok = m.Refresh != nil
	case MsgRealtimeContentUpdate:
		ok = m.Content != nil
	case MsgParticipantLeft:
		ok = m.Departure != nil
	default:
		return Message{}, fmt.Errorf("unknown message type: %q", m.Type)
	}
	if !ok {
		return Message{}, fmt.Errorf("%s message without payload", m.Type)
	}
	return m, nil
}

// Sender returns the participant that originated m, if known.
func (m Message) Sender() string {
	switch {
	case m.Cursor != nil:
		return m.Cursor.ParticipantID
	case m.Refresh != nil:
		return m.Refresh.RequesterID
	case m.Content != nil:
		return m.Content.ParticipantID
	case m.Departure != nil:
		return m.Departure.ParticipantID
	}
	return ""
}
