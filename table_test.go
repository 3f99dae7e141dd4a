package vcursor

import (
	"strings"
	"testing"
)

func TestPeerCursorTable(t *testing.T) {
	tbl := NewPeerCursorTable("me#1")

	if tbl.Upsert(PeerCursor{ParticipantID: "me#1"}) {
		t.Error("local participant was accepted")
	}
	if tbl.Upsert(PeerCursor{}) {
		t.Error("empty participant id was accepted")
	}
	for _, id := range []string{"zoe#1", "amy#2", "amy#1"} {
		if !tbl.Upsert(PeerCursor{ParticipantID: id, Selection: Caret(LineColumn(0, 1))}) {
			t.Fatalf("Upsert(%s) rejected", id)
		}
	}
	if got := strings.Join(tbl.IDs(), ","); got != "amy#1,amy#2,zoe#1" {
		t.Errorf("IDs = %s", got)
	}

	tbl.Upsert(PeerCursor{ParticipantID: "zoe#1", Selection: Caret(LineColumn(3, 0))})
	if c, _ := tbl.Get("zoe#1"); c.Selection.Anchor != LineColumn(3, 0) {
		t.Errorf("upsert did not replace: %+v", c)
	}

	snap := tbl.Snapshot()
	delete(snap, "amy#1")
	if tbl.Len() != 3 {
		t.Error("snapshot shares storage with the table")
	}

	if !tbl.Remove("amy#2") || tbl.Remove("amy#2") {
		t.Error("Remove should report presence exactly once")
	}
	tbl.Clear()
	if tbl.Len() != 0 {
		t.Errorf("Len after Clear = %d", tbl.Len())
	}
}

func TestParticipantIDs(t *testing.T) {
	a, b := NewParticipantID("alice"), NewParticipantID("alice")
	if a == b {
		t.Fatal("two sessions of one user share an id")
	}
	user, session := SplitParticipantID(a)
	if user != "alice" || session == "" {
		t.Errorf("SplitParticipantID(%q) = %q, %q", a, user, session)
	}

	// user ids may themselves contain the separator
	id := ComposeParticipantID("team#blue", "tab1")
	if user, session := SplitParticipantID(id); user != "team#blue" || session != "tab1" {
		t.Errorf("SplitParticipantID(%q) = %q, %q", id, user, session)
	}
	if user, session := SplitParticipantID("plain"); user != "plain" || session != "" {
		t.Errorf("SplitParticipantID(plain) = %q, %q", user, session)
	}
}
