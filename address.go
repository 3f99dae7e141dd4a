package vcursor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

type AddressKind string

const (
	// KindNodeOffset addresses a character offset inside a node of one
	// specific document snapshot.
	KindNodeOffset AddressKind = "node_offset"
	// KindLineColumn addresses a column inside the n-th rendered block.
	KindLineColumn AddressKind = "line_column"
)

// DocumentAddress is a position inside a document, either a node id plus an
// in-node character offset or a line/column pair. Only the fields of the
// active Kind are meaningful.
type DocumentAddress struct {
	Kind   AddressKind `json:"kind"`
	NodeID string      `json:"nodeId,omitempty"`
	Offset int         `json:"offset,omitempty"`
	Line   int         `json:"line,omitempty"`
	Column int         `json:"column,omitempty"`
}

// NodeOffset returns a node-relative address.
func NodeOffset(nodeID string, offset int) DocumentAddress {
	return DocumentAddress{Kind: KindNodeOffset, NodeID: nodeID, Offset: offset}
}

// LineColumn returns a block-relative address.
func LineColumn(line, column int) DocumentAddress {
	return DocumentAddress{Kind: KindLineColumn, Line: line, Column: column}
}

func (a DocumentAddress) String() string {
	switch a.Kind {
	case KindNodeOffset:
		return fmt.Sprintf("node(%s)+%d", a.NodeID, a.Offset)
	case KindLineColumn:
		return fmt.Sprintf("%d:%d", a.Line, a.Column)
	default:
		return fmt.Sprintf("invalid(%q)", a.Kind)
	}
}

// SelectionAddress is a selection between two addresses. A cursor is a
// collapsed selection.
type SelectionAddress struct {
	Anchor    DocumentAddress `json:"anchor"`
	Focus     DocumentAddress `json:"focus"`
	Collapsed bool            `json:"collapsed"`
}

// Caret returns a collapsed selection at a.
func Caret(a DocumentAddress) SelectionAddress {
	return SelectionAddress{Anchor: a, Focus: a, Collapsed: true}
}

// PeerCursor is the last known selection of one participant.
type PeerCursor struct {
	ParticipantID string           `json:"participantId"`
	DisplayName   string           `json:"displayName"`
	ContactInfo   string           `json:"contactInfo"`
	Selection     SelectionAddress `json:"selection"`
	ObservedAt    time.Time        `json:"observedAt"`
}

// ScreenPosition is a renderable position: a text leaf and a rune offset
// into it. Virtual positions are anchored to an element with no text leaves.
type ScreenPosition struct {
	Node    *html.Node
	Offset  int
	Virtual bool
}

// ScreenRange is the renderable form of a selection.
type ScreenRange struct {
	Start ScreenPosition
	End   ScreenPosition
}

// Collapsed reports whether the range starts and ends at the same position.
func (r ScreenRange) Collapsed() bool {
	return r.Start == r.End
}

// Participant describes the local collaborator.
type Participant struct {
	ID          string
	DisplayName string
	ContactInfo string
}

const participantSeparator = "#"

// NewParticipantID composes a durable user id with a fresh per-session
// suffix, so two tabs of one user are distinct participants.
func NewParticipantID(userID string) string {
	return ComposeParticipantID(userID, uuid.NewString())
}

// ComposeParticipantID joins a user id and a session suffix.
func ComposeParticipantID(userID, session string) string {
	return userID + participantSeparator + session
}

// SplitParticipantID returns the durable user id and the session suffix.
func SplitParticipantID(id string) (userID, session string) {
	i := strings.LastIndex(id, participantSeparator)
	if i < 0 {
		return id, ""
	}
	return id[:i], id[i+len(participantSeparator):]
}
