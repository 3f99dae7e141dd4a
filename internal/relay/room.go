package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dannyswat/vcursor"
	"github.com/dannyswat/vcursor/transport/redisch"
)

// historySize bounds the recent versions kept for merging deltas made
// against an older base.
const historySize = 32

const relayUserID = "relay"

type revision struct {
	hash    string
	content string
}

// room is the relay state of one document.
type room struct {
	id        string
	logger    *slog.Logger
	backplane *redisch.Channel

	mu       sync.Mutex
	conns    map[*conn]bool
	snapshot string
	has      bool
	history  []revision
	version  uint64
	saved    uint64
}

func newRoom(id string, logger *slog.Logger) *room {
	return &room{
		id:     id,
		logger: logger.With("doc", id),
		conns:  make(map[*conn]bool),
	}
}

func canonicalize(content string) (string, error) {
	root, err := vcursor.ParseHTML(content)
	if err != nil {
		return "", err
	}
	return vcursor.RenderNode(root)
}

func relayUpdate(snapshot string) *vcursor.ContentUpdate {
	return &vcursor.ContentUpdate{
		UserID:           relayUserID,
		DocumentSnapshot: snapshot,
		Timestamp:        time.Now(),
	}
}

// seed installs a stored snapshot without marking it dirty.
func (rm *room) seed(content string) error {
	canonical, err := canonicalize(content)
	if err != nil {
		return err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.setSnapshot(canonical)
	rm.saved = rm.version
	return nil
}

func (rm *room) setSnapshot(canonical string) {
	rm.snapshot = canonical
	rm.has = true
	rm.version++
	rm.history = append(rm.history, revision{hash: vcursor.HashHTML(canonical), content: canonical})
	if len(rm.history) > historySize {
		rm.history = rm.history[len(rm.history)-historySize:]
	}
}

func (rm *room) lookup(hash string) (string, bool) {
	for i := len(rm.history) - 1; i >= 0; i-- {
		if rm.history[i].hash == hash {
			return rm.history[i].content, true
		}
	}
	return "", false
}

// join adds c and sends it the current snapshot.
func (rm *room) join(c *conn) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.conns[c] = true
	if !rm.has {
		return
	}
	buf, err := vcursor.EncodeMessage(vcursor.Message{
		Type:    vcursor.MsgRealtimeContentUpdate,
		Content: relayUpdate(rm.snapshot),
	})
	if err != nil {
		rm.logger.Error("failed to encode snapshot", "err", err)
		return
	}
	c.enqueue(buf)
}

// leave removes c and returns the participants it spoke for that have not
// announced their departure.
func (rm *room) leave(c *conn) []string {
	rm.mu.Lock()
	if rm.conns[c] {
		delete(rm.conns, c)
		close(c.send)
	}
	rm.mu.Unlock()
	return c.departures()
}

func (rm *room) size() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.conns)
}

func (rm *room) latest() (string, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.snapshot, rm.has
}

func (rm *room) dirtySnapshot() (string, uint64, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if !rm.has || rm.version == rm.saved {
		return "", 0, false
	}
	return rm.snapshot, rm.version, true
}

func (rm *room) markSaved(v uint64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.saved = max(rm.saved, v)
}

// deliver tracks content changes in m and fans it out to every connection.
// Connections that cannot keep up are dropped.
func (rm *room) deliver(m vcursor.Message) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if m.Type == vcursor.MsgRealtimeContentUpdate && m.Content != nil {
		m = rm.absorb(m)
	}
	buf, err := vcursor.EncodeMessage(m)
	if err != nil {
		rm.logger.Error("failed to encode", "type", m.Type, "err", err)
		return
	}
	for c := range rm.conns {
		if !c.enqueue(buf) {
			rm.logger.Warn("dropping slow connection")
			delete(rm.conns, c)
			close(c.send)
		}
	}
}

// absorb applies a content update to the tracked snapshot. A delta made
// against an older version is merged with what happened since; when that
// fails the authoritative snapshot replaces the update so every
// participant, the author included, converges on it.
func (rm *room) absorb(m vcursor.Message) vcursor.Message {
	u := m.Content
	if u.DocumentSnapshot != "" {
		canonical, err := canonicalize(u.DocumentSnapshot)
		if err != nil {
			rm.logger.Warn("unparseable snapshot", "from", u.ParticipantID, "err", err)
			return m
		}
		rm.setSnapshot(canonical)
		return m
	}
	if u.Delta == nil || !rm.has {
		return m
	}

	resync := vcursor.Message{Type: vcursor.MsgRealtimeContentUpdate, Content: relayUpdate(rm.snapshot)}
	if u.Delta.BaseHash == vcursor.HashHTML(rm.snapshot) {
		patched, err := vcursor.Patch(rm.snapshot, u.Delta)
		if err == nil {
			patched, err = canonicalize(patched)
		}
		if err != nil {
			rm.logger.Warn("rejected delta", "from", u.ParticipantID, "err", err)
			return resync
		}
		rm.setSnapshot(patched)
		return m
	}

	base, ok := rm.lookup(u.Delta.BaseHash)
	if !ok {
		rm.logger.Warn("delta against unknown version", "from", u.ParticipantID)
		return resync
	}
	theirs, err := vcursor.Diff(base, rm.snapshot, relayUserID)
	if err != nil {
		rm.logger.Warn("failed to diff history", "err", err)
		return resync
	}
	merged, _, conflicts, err := vcursor.Merge(base, theirs, u.Delta)
	if err == nil && len(conflicts) == 0 {
		merged, err = canonicalize(merged)
	}
	if err != nil || len(conflicts) > 0 {
		rm.logger.Info("concurrent edit not merged", "from", u.ParticipantID, "conflicts", len(conflicts), "err", err)
		return resync
	}
	rm.setSnapshot(merged)
	return vcursor.Message{Type: vcursor.MsgRealtimeContentUpdate, Content: relayUpdate(merged)}
}

func (rm *room) close() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for c := range rm.conns {
		delete(rm.conns, c)
		close(c.send)
	}
	if rm.backplane != nil {
		_ = rm.backplane.Close()
	}
}
