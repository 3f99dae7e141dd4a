package vcursor

import (
	"errors"
	"log/slog"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Executor receives inbound channel messages; it must run them on the
	// goroutine that owns the document. Nil runs them inline, which is only
	// correct when the channel already delivers on that goroutine.
	Executor  Executor
	Scheduler Scheduler
	Config    Config
	Logger    *slog.Logger
}

// Session is one participant's cursor subsystem for one open document. It
// connects the document's selection events and the channel's messages to a
// Protocol and a Reconciler.
type Session struct {
	doc        DocumentModel
	protocol   *Protocol
	reconciler *Reconciler
	logger     *slog.Logger

	subs   subscriptions
	closed bool
}

// NewSession subscribes to doc and ch on behalf of local. Close releases
// every subscription.
func NewSession(local Participant, doc DocumentModel, ch Channel, opts SessionOptions) (*Session, error) {
	if local.ID == "" {
		return nil, errors.New("participant id is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	exec := opts.Executor
	if exec == nil {
		exec = inlineExecutor{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := NewProtocol(local, doc, ch, opts.Scheduler, opts.Config, logger)
	s := &Session{
		doc:        doc,
		protocol:   p,
		reconciler: NewReconciler(p, logger),
		logger:     logger.With("component", "session", "participant", local.ID),
	}

	on := func(t MessageType, h Handler) {
		s.subs.add(ch.On(t, func(m Message) {
			exec.Post(func() {
				if s.closed {
					return
				}
				h(m)
			})
		}))
	}
	on(MsgCursorPosition, p.HandleCursorPosition)
	on(MsgRequestCursorRefresh, p.HandleRefreshRequest)
	on(MsgRequestCursorRefreshAll, p.HandleRefreshAllRequest)
	on(MsgParticipantLeft, p.HandleDeparture)
	on(MsgRealtimeContentUpdate, s.handleContentUpdate)
	s.subs.add(doc.OnSelectionChange(p.HandleSelectionChange))
	return s, nil
}

func (s *Session) handleContentUpdate(m Message) {
	if err := s.reconciler.ApplyContentUpdate(m.Content); err != nil {
		s.logger.Warn("failed to apply content update", "from", m.Sender(), "err", err)
	}
}

func (s *Session) Document() DocumentModel {
	return s.doc
}

func (s *Session) Protocol() *Protocol {
	return s.protocol
}

func (s *Session) Reconciler() *Reconciler {
	return s.reconciler
}

// Peers returns a copy of the peer cursor table.
func (s *Session) Peers() map[string]PeerCursor {
	return s.protocol.table.Snapshot()
}

// OnPeersChanged registers the renderer hook.
func (s *Session) OnPeersChanged(fn func()) {
	s.protocol.OnPeersChanged(fn)
}

// Resolve returns where a peer's cursor should be drawn.
func (s *Session) Resolve(participantID string) (ScreenRange, error) {
	return s.protocol.Resolve(participantID)
}

// SetSelection moves the local caret; the change is announced like a user
// selection.
func (s *Session) SetSelection(sel SelectionAddress) error {
	return s.doc.SetSelection(sel)
}

// CommitLocalEdit publishes a local edit; see Reconciler.CommitLocalEdit.
func (s *Session) CommitLocalEdit(newHTML string) (*Delta, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.reconciler.CommitLocalEdit(newHTML)
}

// RequestRefreshAll asks every peer to re-announce, typically right after
// joining.
func (s *Session) RequestRefreshAll(reason string) {
	if s.closed {
		return
	}
	s.protocol.RequestRefreshAll(reason)
}

// Close announces the departure and releases all subscriptions. It is safe
// to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.protocol.Leave()
	s.subs.release()
}
