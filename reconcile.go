package vcursor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Reconciler keeps peer cursors and the local caret meaningful across
// document replacements. It shares its Protocol's table and flags and must
// run on the same goroutine.
type Reconciler struct {
	p      *Protocol
	doc    DocumentModel
	sched  Scheduler
	cfg    Config
	logger *slog.Logger

	// generation identifies the latest content update; settle timers of
	// superseded updates see a newer value and do nothing.
	generation uint64
	pending    *pendingReconcile
}

// pendingReconcile is the state captured before the first of a run of
// overlapping content updates.
type pendingReconcile struct {
	oldLayout *Layout
	takenAt   time.Time
	peers     map[string]capturedCursor
	local     *SelectionAddress
	lost      []string
	full      bool
	// authors holds cursors carried by the updates themselves; they are
	// already positioned against the new content.
	authors map[string]PeerCursor
}

// capturedCursor is a peer cursor in line/column form together with the
// text it was positioned against.
type capturedCursor struct {
	PeerCursor
	layout *Layout
}

func NewReconciler(p *Protocol, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		p:      p,
		doc:    p.doc,
		sched:  p.sched,
		cfg:    p.cfg,
		logger: logger.With("component", "reconcile", "participant", p.local.ID),
	}
}

// Reconciling reports whether a content update is waiting for its settle
// delay.
func (r *Reconciler) Reconciling() bool {
	return r.pending != nil
}

// ApplyContentUpdate applies a remote content change. Peer cursors are
// hidden at once and come back, relocated onto the new text, after the
// settle delay. Updates from the local participant are ignored.
func (r *Reconciler) ApplyContentUpdate(u *ContentUpdate) error {
	if u == nil {
		return errors.New("nil content update")
	}
	if u.ParticipantID != "" && u.ParticipantID == r.p.local.ID {
		return nil
	}
	full := u.DocumentSnapshot != ""
	if !full && u.Delta == nil {
		return errors.New("content update carries neither snapshot nor delta")
	}

	pend := r.pending
	fresh := pend == nil
	if fresh {
		pend = r.capture()
	}

	r.p.suppress()
	saved := r.p.table.Snapshot()
	r.p.table.Clear()

	// Work on a copy so a failed update leaves the pending state alone.
	next := pend
	if !fresh {
		next = pend.fold(r, saved)
	}

	if err := r.apply(u, full); err != nil {
		for _, c := range saved {
			r.p.table.Upsert(c)
		}
		if fresh {
			r.p.resume()
		}
		return err
	}
	pend = next
	r.p.markContentUpdate()
	if len(saved) > 0 {
		r.p.notifyChanged()
	}

	pend.full = pend.full || full
	if u.CursorPosition != nil && u.ParticipantID != "" {
		pend.authors[u.ParticipantID] = r.authorCursor(u, pend)
	}
	r.pending = pend

	r.generation++
	gen := r.generation
	delay := r.cfg.LightweightSettleDelay
	if pend.full {
		delay = r.cfg.SettleDelay
	}
	r.sched.AfterFunc(delay, func() {
		if gen != r.generation {
			return
		}
		r.settle()
	})
	return nil
}

func (r *Reconciler) apply(u *ContentUpdate, full bool) error {
	if !full {
		if err := r.doc.ApplyDelta(u.Delta); err != nil {
			return fmt.Errorf("failed to apply delta: %w", err)
		}
		return nil
	}
	s, err := r.doc.ParseSnapshot(u.DocumentSnapshot)
	if err != nil {
		return err
	}
	if err := r.doc.ApplySnapshot(s); err != nil {
		return fmt.Errorf("failed to apply snapshot: %w", err)
	}
	return nil
}

// capture records the pre-update text, the peer cursors normalized to
// line/column form, and the local selection.
func (r *Reconciler) capture() *pendingReconcile {
	pend := &pendingReconcile{
		oldLayout: LayoutOf(r.doc),
		takenAt:   r.sched.Now(),
		peers:     make(map[string]capturedCursor),
		authors:   make(map[string]PeerCursor),
	}
	pend.collect(r, r.p.table.Snapshot(), pend.oldLayout)
	if sel, ok := r.doc.Selection(); ok {
		if norm, err := NormalizeSelection(r.doc, sel); err == nil || errors.Is(err, ErrAddressNotFound) {
			pend.local = &norm
		}
	}
	return pend
}

// collect normalizes cursors against the current document and records them
// as positioned against l, replacing earlier captures of the same peer.
func (pend *pendingReconcile) collect(r *Reconciler, cursors map[string]PeerCursor, l *Layout) {
	for _, id := range sortedKeys(cursors) {
		c := cursors[id]
		sel, err := NormalizeSelection(r.doc, c.Selection)
		if err != nil && !errors.Is(err, ErrAddressNotFound) {
			r.logger.Debug("dropping unnormalizable peer cursor", "peer", id, "err", err)
			delete(pend.peers, id)
			pend.lost = append(pend.lost, id)
			continue
		}
		c.Selection = sel
		pend.peers[id] = capturedCursor{PeerCursor: c, layout: l}
	}
}

// fold returns pend extended with the cursors that became valid since it
// was taken: author cursors of earlier updates and announcements accepted
// after them. Both are positioned against the current document, which is
// about to be replaced.
func (pend *pendingReconcile) fold(r *Reconciler, table map[string]PeerCursor) *pendingReconcile {
	next := *pend
	next.peers = make(map[string]capturedCursor, len(pend.peers))
	for id, c := range pend.peers {
		next.peers[id] = c
	}
	next.lost = append([]string(nil), pend.lost...)
	next.authors = make(map[string]PeerCursor)

	current := make(map[string]PeerCursor, len(pend.authors)+len(table))
	for id, c := range pend.authors {
		current[id] = c
	}
	for id, c := range table {
		if prev, ok := current[id]; ok && prev.ObservedAt.After(c.ObservedAt) {
			continue
		}
		current[id] = c
	}
	next.collect(r, current, LayoutOf(r.doc))
	return &next
}

func (r *Reconciler) authorCursor(u *ContentUpdate, pend *pendingReconcile) PeerCursor {
	c := PeerCursor{
		ParticipantID: u.ParticipantID,
		Selection:     *u.CursorPosition,
		ObservedAt:    u.Timestamp,
	}
	if prev, ok := pend.peers[u.ParticipantID]; ok {
		c.DisplayName = prev.DisplayName
		c.ContactInfo = prev.ContactInfo
	}
	if c.ObservedAt.IsZero() {
		c.ObservedAt = r.sched.Now()
	}
	return c
}

// settle runs once the document has re-rendered: it relocates the captured
// cursors, restores the local caret and resumes announcing.
func (r *Reconciler) settle() {
	pend := r.pending
	r.pending = nil
	if pend == nil {
		return
	}
	newLayout := LayoutOf(r.doc)

	failed := pend.lost
	for _, id := range sortedKeys(pend.peers) {
		c := pend.peers[id]
		if cur, ok := r.p.table.Get(id); ok && !cur.ObservedAt.Before(c.ObservedAt) {
			continue
		}
		sel, err := TransformSelection(c.Selection, c.layout, newLayout, r.cfg.ContextWindow)
		if err != nil {
			r.logger.Debug("dropping peer cursor", "peer", id, "err", err)
			failed = append(failed, id)
			continue
		}
		c.Selection = sel
		r.p.table.Upsert(c.PeerCursor)
	}
	for _, id := range sortedKeys(pend.authors) {
		c := pend.authors[id]
		if cur, ok := r.p.table.Get(id); ok && cur.ObservedAt.After(c.ObservedAt) {
			continue
		}
		r.p.table.Upsert(c)
	}
	r.p.notifyChanged()

	if pend.local != nil {
		sel, err := TransformSelection(*pend.local, pend.oldLayout, newLayout, r.cfg.ContextWindow)
		if err != nil {
			r.logger.Debug("could not restore local selection", "err", err)
		} else if err := r.p.setSelection(sel); err != nil {
			r.logger.Warn("failed to restore local selection", "err", err)
		}
	}

	r.p.resume()
	if err := r.p.Announce(); err != nil && !errors.Is(err, ErrNoSelection) {
		r.logger.Warn("announcement after reconciliation failed", "err", err)
	}

	// Realtime patches are frequent and small; only full replacements ask
	// the owners of lost cursors to re-announce.
	if pend.full {
		for _, id := range failed {
			r.p.RequestRefresh(id, "cursor lost in content update")
		}
	}
}

// CommitLocalEdit replaces the local document with newHTML, shifts the peer
// cursors onto the edited text and broadcasts the change as a realtime
// patch. It returns the broadcast delta.
func (r *Reconciler) CommitLocalEdit(newHTML string) (*Delta, error) {
	s, err := r.doc.ParseSnapshot(newHTML)
	if err != nil {
		return nil, err
	}
	delta, err := Diff(r.doc.HTML(), s.HTML(), r.p.local.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to diff local edit: %w", err)
	}
	if len(delta.Operations) == 0 {
		return delta, nil
	}

	oldLayout := LayoutOf(r.doc)
	peers := make(map[string]PeerCursor)
	for id, c := range r.p.table.Snapshot() {
		if sel, err := NormalizeSelection(r.doc, c.Selection); err == nil || errors.Is(err, ErrAddressNotFound) {
			c.Selection = sel
			peers[id] = c
		}
	}
	local, hasLocal := r.doc.Selection()
	if hasLocal {
		local, _ = NormalizeSelection(r.doc, local)
	}

	if err := r.doc.ApplyDelta(delta); err != nil {
		return nil, fmt.Errorf("failed to apply local edit: %w", err)
	}
	r.p.markContentUpdate()
	newLayout := LayoutOf(r.doc)

	for id, c := range peers {
		sel, err := TransformSelection(c.Selection, oldLayout, newLayout, r.cfg.ContextWindow)
		if err != nil {
			r.p.table.Remove(id)
			continue
		}
		c.Selection = sel
		r.p.table.Upsert(c)
	}
	r.p.notifyChanged()

	u := &ContentUpdate{
		ParticipantID: r.p.local.ID,
		Delta:         delta,
		Timestamp:     r.sched.Now(),
	}
	u.UserID, _ = SplitParticipantID(r.p.local.ID)
	if hasLocal {
		if sel, err := TransformSelection(local, oldLayout, newLayout, r.cfg.ContextWindow); err == nil {
			if err := r.p.setSelection(sel); err != nil {
				r.logger.Warn("failed to place caret after edit", "err", err)
			}
			u.CursorPosition = &sel
		}
	}
	r.p.send(Message{Type: MsgRealtimeContentUpdate, Content: u})
	return delta, nil
}
