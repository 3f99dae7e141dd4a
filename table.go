package vcursor

import "sort"

// PeerCursorTable maps participant ids to their last known cursor. It never
// holds the local participant. Stale entries are kept: staleness is a
// rendering concern, not an eviction rule.
//
// A table is owned by one event loop and is not safe for concurrent use.
type PeerCursorTable struct {
	localID string
	entries map[string]PeerCursor
}

// NewPeerCursorTable returns an empty table for the given local participant.
func NewPeerCursorTable(localID string) *PeerCursorTable {
	return &PeerCursorTable{localID: localID, entries: make(map[string]PeerCursor)}
}

// Upsert inserts or replaces c. It reports false for the local participant.
func (t *PeerCursorTable) Upsert(c PeerCursor) bool {
	if c.ParticipantID == "" || c.ParticipantID == t.localID {
		return false
	}
	t.entries[c.ParticipantID] = c
	return true
}

func (t *PeerCursorTable) Get(id string) (PeerCursor, bool) {
	c, ok := t.entries[id]
	return c, ok
}

// Remove deletes id and reports whether it was present.
func (t *PeerCursorTable) Remove(id string) bool {
	_, ok := t.entries[id]
	delete(t.entries, id)
	return ok
}

func (t *PeerCursorTable) Clear() {
	t.entries = make(map[string]PeerCursor)
}

func (t *PeerCursorTable) Len() int {
	return len(t.entries)
}

// Snapshot returns a copy of the entries.
func (t *PeerCursorTable) Snapshot() map[string]PeerCursor {
	out := make(map[string]PeerCursor, len(t.entries))
	for id, c := range t.entries {
		out[id] = c
	}
	return out
}

// IDs returns the participant ids in sorted order.
func (t *PeerCursorTable) IDs() []string {
	return sortedKeys(t.entries)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
