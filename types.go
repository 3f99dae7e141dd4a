package vcursor

import (
	"strconv"
	"strings"
)

// NodePath addresses a node by child indices from the document root, skipping
// whitespace-only text. [0, 1, 3] is root.child[0].child[1].child[3].
type NodePath []int

// String renders the path as dot-separated child indices ("0.1.3").
func (p NodePath) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// ParseNodePath is the inverse of NodePath.String.
func ParseNodePath(s string) (NodePath, error) {
	if s == "" {
		return NodePath{}, nil
	}
	parts := strings.Split(s, ".")
	path := make(NodePath, len(parts))
	for i, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil, errInvalidPath(s)
		}
		path[i] = idx
	}
	return path, nil
}

// OpType names the kind of change an Operation makes.
type OpType string

const (
	OpInsertNode OpType = "INSERT_NODE"
	OpDeleteNode OpType = "DELETE_NODE"
	OpUpdateAttr OpType = "UPDATE_ATTR" // set, adding if missing
	OpRemoveAttr OpType = "REMOVE_ATTR"
	OpUpdateText OpType = "UPDATE_TEXT" // whole text node
	OpInsertText OpType = "INSERT_TEXT"
	OpDeleteText OpType = "DELETE_TEXT"
)

// Operation is one step of a Delta. Text positions count runes.
type Operation struct {
	Type     OpType   `json:"type"`
	Path     NodePath `json:"path"`
	Key      string   `json:"key,omitempty"`       // attribute name
	OldValue string   `json:"old_value,omitempty"` // checked before applying; the removed text for DELETE_TEXT
	NewValue string   `json:"new_value,omitempty"`
	NodeData string   `json:"node_data,omitempty"` // rendered HTML of an inserted node
	Position int      `json:"position,omitempty"`  // child index, or rune offset for text ops
}

// Delta is one participant's edit, expressed against the canonical HTML
// whose HashHTML is BaseHash. Operations apply in order.
type Delta struct {
	BaseHash   string      `json:"base_hash"`
	Operations []Operation `json:"operations"`
	Timestamp  int64       `json:"timestamp"`
	Author     string      `json:"author"`
}

// Conflict reports two concurrent operations that touch the same content,
// which Merge refuses to combine.
type Conflict struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Path        NodePath    `json:"path"`
	Ops         []Operation `json:"ops"`
}
