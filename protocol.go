package vcursor

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// State is the outbound announcement state of a Protocol.
type State int

const (
	StateIdle State = iota
	StateAnnouncing
	StateSuppressed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnnouncing:
		return "announcing"
	case StateSuppressed:
		return "suppressed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Protocol announces the local cursor, maintains the table of peer cursors
// from their announcements, and answers refresh requests. All methods must
// be called from the goroutine that owns the document (see Loop).
type Protocol struct {
	local  Participant
	doc    DocumentModel
	ch     Channel
	sched  Scheduler
	cfg    Config
	logger *slog.Logger

	table *PeerCursorTable
	state State

	// suppressed drops local selection changes while a content update is
	// being reconciled. inSelectionChange keeps the selection handler from
	// re-entering itself when a selection is set programmatically.
	suppressed        bool
	inSelectionChange bool

	lastAnnounced   *SelectionAddress
	lastAnnounceAt  time.Time
	announcePending bool

	lastContentUpdate time.Time
	lastResponse      map[string]time.Time
	lastResponseAll   time.Time
	lastRequest       map[string]time.Time

	onChange func()
	left     bool
}

// NewProtocol returns a Protocol for the local participant. A nil logger
// means slog.Default().
func NewProtocol(local Participant, doc DocumentModel, ch Channel, sched Scheduler, cfg Config, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{
		local:        local,
		doc:          doc,
		ch:           ch,
		sched:        sched,
		cfg:          cfg.withDefaults(),
		logger:       logger.With("component", "cursor", "participant", local.ID),
		table:        NewPeerCursorTable(local.ID),
		lastResponse: make(map[string]time.Time),
		lastRequest:  make(map[string]time.Time),
	}
}

func (p *Protocol) Table() *PeerCursorTable {
	return p.table
}

func (p *Protocol) State() State {
	if p.suppressed {
		return StateSuppressed
	}
	return p.state
}

func (p *Protocol) Suppressed() bool {
	return p.suppressed
}

// OnPeersChanged registers the renderer hook called after the peer table
// changes.
func (p *Protocol) OnPeersChanged(fn func()) {
	p.onChange = fn
}

func (p *Protocol) notifyChanged() {
	if p.onChange != nil {
		p.onChange()
	}
}

// LastAnnounced returns the selection most recently sent to peers.
func (p *Protocol) LastAnnounced() (SelectionAddress, bool) {
	if p.lastAnnounced == nil {
		return SelectionAddress{}, false
	}
	return *p.lastAnnounced, true
}

// HandleSelectionChange reacts to a local selection change. While a
// reconciliation is running the change is dropped, not queued.
// Announcements are rate limited; changes inside AnnounceInterval collapse
// into one trailing announcement of the latest selection.
func (p *Protocol) HandleSelectionChange(sel SelectionAddress) {
	if p.inSelectionChange {
		return
	}
	p.inSelectionChange = true
	defer func() { p.inSelectionChange = false }()

	if p.suppressed {
		p.logger.Debug("selection change dropped during reconciliation")
		return
	}

	now := p.sched.Now()
	if p.lastAnnounceAt.IsZero() || now.Sub(p.lastAnnounceAt) >= p.cfg.AnnounceInterval {
		p.announce(sel)
		return
	}
	if p.announcePending {
		return
	}
	p.announcePending = true
	p.sched.AfterFunc(p.cfg.AnnounceInterval-now.Sub(p.lastAnnounceAt), func() {
		p.announcePending = false
		if p.suppressed {
			return
		}
		if err := p.Announce(); err != nil && !errors.Is(err, ErrNoSelection) {
			p.logger.Warn("trailing announcement failed", "err", err)
		}
	})
}

// Announce sends the current local selection to all peers immediately.
// Nothing is sent while suppressed.
func (p *Protocol) Announce() error {
	sel, ok := p.doc.Selection()
	if !ok {
		return ErrNoSelection
	}
	return p.announce(sel)
}

func (p *Protocol) announce(sel SelectionAddress) error {
	if p.suppressed || p.left {
		return nil
	}
	norm, err := NormalizeSelection(p.doc, sel)
	if err != nil && !errors.Is(err, ErrAddressNotFound) {
		return fmt.Errorf("failed to normalize selection: %w", err)
	}

	p.state = StateAnnouncing
	defer func() { p.state = StateIdle }()

	now := p.sched.Now()
	p.lastAnnounced = &norm
	p.lastAnnounceAt = now
	cursor := &PeerCursor{
		ParticipantID: p.local.ID,
		DisplayName:   p.local.DisplayName,
		ContactInfo:   p.local.ContactInfo,
		Selection:     norm,
		ObservedAt:    now,
	}
	if err := p.ch.Send(Message{Type: MsgCursorPosition, Cursor: cursor}); err != nil {
		// Best effort: the next change or a refresh request re-announces.
		p.logger.Warn("failed to send cursor position", "err", err)
	}
	return nil
}

// HandleCursorPosition applies a peer's announcement to the table unless it
// is our own echo, older than the staleness ceiling, or arrived within the
// grace window after a content update.
func (p *Protocol) HandleCursorPosition(m Message) {
	c := m.Cursor
	if c == nil {
		return
	}
	if c.ParticipantID == p.local.ID {
		return
	}
	now := p.sched.Now()
	if now.Sub(c.ObservedAt) > p.cfg.StalenessCeiling {
		p.logger.Debug("dropped stale cursor", "peer", c.ParticipantID, "observedAt", c.ObservedAt)
		return
	}
	if !p.lastContentUpdate.IsZero() && now.Sub(p.lastContentUpdate) < p.cfg.ContentGraceWindow {
		p.logger.Debug("dropped cursor inside content grace window", "peer", c.ParticipantID)
		return
	}
	if p.table.Upsert(*c) {
		p.notifyChanged()
	}
}

// HandleRefreshRequest re-announces after a settle delay when the request
// targets the local participant.
func (p *Protocol) HandleRefreshRequest(m Message) {
	r := m.Refresh
	if r == nil || r.TargetParticipantID != p.local.ID {
		return
	}
	now := p.sched.Now()
	if last, ok := p.lastResponse[r.RequesterID]; ok && now.Sub(last) < p.cfg.RefreshResponseInterval {
		p.logger.Debug("refresh request rate limited", "requester", r.RequesterID)
		return
	}
	p.lastResponse[r.RequesterID] = now
	p.sched.AfterFunc(p.cfg.RefreshSettleDelay, p.respond)
}

// HandleRefreshAllRequest re-announces after a random jitter so that all
// participants do not answer at once.
func (p *Protocol) HandleRefreshAllRequest(m Message) {
	r := m.Refresh
	if r == nil || r.RequesterID == p.local.ID {
		return
	}
	now := p.sched.Now()
	if !p.lastResponseAll.IsZero() && now.Sub(p.lastResponseAll) < p.cfg.RefreshAllResponseInterval {
		p.logger.Debug("refresh-all request rate limited", "requester", r.RequesterID)
		return
	}
	p.lastResponseAll = now
	p.sched.AfterFunc(rand.N(p.cfg.RefreshAllJitter), p.respond)
}

func (p *Protocol) respond() {
	// A running reconciliation re-announces when it finishes.
	if p.suppressed {
		return
	}
	if err := p.Announce(); err != nil && !errors.Is(err, ErrNoSelection) {
		p.logger.Warn("refresh response failed", "err", err)
	}
}

// HandleDeparture removes a departed participant.
func (p *Protocol) HandleDeparture(m Message) {
	d := m.Departure
	if d == nil || d.ParticipantID == p.local.ID {
		return
	}
	if p.table.Remove(d.ParticipantID) {
		p.notifyChanged()
	}
}

// RequestRefresh asks target to re-announce. Repeated requests for the same
// target inside RefreshRequestInterval are dropped.
func (p *Protocol) RequestRefresh(target, reason string) {
	if target == "" || target == p.local.ID {
		return
	}
	now := p.sched.Now()
	if last, ok := p.lastRequest[target]; ok && now.Sub(last) < p.cfg.RefreshRequestInterval {
		return
	}
	p.lastRequest[target] = now
	p.send(Message{Type: MsgRequestCursorRefresh, Refresh: &RefreshRequest{
		TargetParticipantID: target,
		RequesterID:         p.local.ID,
		Reason:              reason,
		Timestamp:           now,
	}})
}

// RequestRefreshAll asks every participant to re-announce.
func (p *Protocol) RequestRefreshAll(reason string) {
	p.send(Message{Type: MsgRequestCursorRefreshAll, Refresh: &RefreshRequest{
		RequesterID: p.local.ID,
		Reason:      reason,
		Timestamp:   p.sched.Now(),
	}})
}

// Resolve returns the screen range of a peer's selection. When the address
// no longer resolves, a refresh is requested from that peer.
func (p *Protocol) Resolve(participantID string) (ScreenRange, error) {
	c, ok := p.table.Get(participantID)
	if !ok {
		return ScreenRange{}, fmt.Errorf("%w: no cursor for %s", ErrAddressNotFound, participantID)
	}
	r, err := SelectionToScreenRange(p.doc, c.Selection)
	if errors.Is(err, ErrAddressNotFound) {
		p.RequestRefresh(participantID, "unresolvable address")
	}
	return r, err
}

// Stale reports whether c is older than the staleness ceiling.
func (p *Protocol) Stale(c PeerCursor) bool {
	return p.sched.Now().Sub(c.ObservedAt) > p.cfg.StalenessCeiling
}

// Leave announces the local participant's departure. Nothing is sent
// afterwards.
func (p *Protocol) Leave() {
	if p.left {
		return
	}
	defer func() { p.left = true }()
	p.send(Message{Type: MsgParticipantLeft, Departure: &Departure{
		ParticipantID: p.local.ID,
		Timestamp:     p.sched.Now(),
	}})
}

func (p *Protocol) send(m Message) {
	if p.left {
		return
	}
	if err := p.ch.Send(m); err != nil {
		p.logger.Warn("failed to send message", "type", m.Type, "err", err)
	}
}

func (p *Protocol) suppress() {
	p.suppressed = true
}

func (p *Protocol) resume() {
	p.suppressed = false
}

func (p *Protocol) markContentUpdate() {
	p.lastContentUpdate = p.sched.Now()
}

// setSelection places the local selection without triggering an
// announcement from the resulting selection-change event.
func (p *Protocol) setSelection(sel SelectionAddress) error {
	prev := p.inSelectionChange
	p.inSelectionChange = true
	defer func() { p.inSelectionChange = prev }()
	return p.doc.SetSelection(sel)
}
