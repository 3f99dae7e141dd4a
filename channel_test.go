package vcursor

import (
	"errors"
	"testing"
)

func TestMemoryHubDelivery(t *testing.T) {
	hub := NewMemoryHub()
	a, b := hub.Join(), hub.Join()

	var gotA, gotB []Message
	a.On(MsgCursorPosition, func(m Message) { gotA = append(gotA, m) })
	subB := b.On(MsgCursorPosition, func(m Message) { gotB = append(gotB, m) })
	b.On(MsgParticipantLeft, func(Message) { t.Error("wrong type dispatched") })

	m := Message{Type: MsgCursorPosition, Cursor: &PeerCursor{ParticipantID: "a#1"}}
	if err := a.Send(m); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// the sender receives its own message, like any broadcast
	if len(gotA) != 1 || len(gotB) != 1 {
		t.Fatalf("deliveries: a=%d b=%d", len(gotA), len(gotB))
	}

	subB.Unsubscribe()
	if b.Handlers(MsgCursorPosition) != 0 {
		t.Error("handler still registered")
	}
	_ = a.Send(m)
	if len(gotB) != 1 {
		t.Error("unsubscribed handler was called")
	}
	if n := len(a.SentOfType(MsgCursorPosition)); n != 2 {
		t.Errorf("SentOfType = %d, want 2", n)
	}
}

func TestMemoryChannelFailures(t *testing.T) {
	hub := NewMemoryHub()
	a, b := hub.Join(), hub.Join()
	delivered := 0
	b.On(MsgCursorPosition, func(Message) { delivered++ })

	boom := errors.New("boom")
	a.FailSends(boom)
	m := Message{Type: MsgCursorPosition, Cursor: &PeerCursor{ParticipantID: "a#1"}}
	if err := a.Send(m); !errors.Is(err, boom) {
		t.Fatalf("Send = %v, want boom", err)
	}
	a.FailSends(nil)
	if err := a.Send(m); err != nil {
		t.Fatalf("Send: %v", err)
	}

	b.Leave()
	_ = a.Send(m)
	if delivered != 1 {
		t.Errorf("delivered %d, want 1", delivered)
	}
	if err := b.Send(m); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Leave = %v", err)
	}
}

func TestMuxHandlerMayUnsubscribeItself(t *testing.T) {
	var x Mux
	calls := 0
	var sub Subscription
	sub = x.On(MsgParticipantLeft, func(Message) {
		calls++
		sub.Unsubscribe()
	})
	x.Dispatch(Message{Type: MsgParticipantLeft})
	x.Dispatch(Message{Type: MsgParticipantLeft})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
