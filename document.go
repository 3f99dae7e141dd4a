package vcursor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Block is one rendered block of a document: an innermost block element and
// its plain text.
type Block struct {
	ID      string
	Element *html.Node
	Text    string
}

// Snapshot is a parsed, canonical serialisation of a whole document.
type Snapshot struct {
	html string
}

// HTML returns the canonical serialisation.
func (s *Snapshot) HTML() string {
	return s.html
}

// DocumentModel is the rich-text document engine the cursor subsystem runs
// against. Implementations are driven from a single event loop.
type DocumentModel interface {
	// Text is the plain-text projection: block texts joined by "\n".
	Text() string
	Blocks() []Block
	ResolveElement(nodeID string) (*html.Node, bool)
	NodeID(n *html.Node) (string, bool)
	HTML() string

	ParseSnapshot(serialized string) (*Snapshot, error)
	ApplySnapshot(s *Snapshot) error
	ApplyDelta(d *Delta) error

	Selection() (SelectionAddress, bool)
	SetSelection(sel SelectionAddress) error
	OnSelectionChange(fn func(SelectionAddress)) Subscription
}

// HTMLDocument is a DocumentModel over an html.Node tree. Node ids embed a
// generation that changes on every content replacement, so ids handed out
// before an update never resolve afterwards.
//
// HTMLDocument is not safe for concurrent use.
type HTMLDocument struct {
	root       *html.Node
	canonical  string
	generation uint64
	blocks     []Block

	selection    SelectionAddress
	hasSelection bool

	listeners    map[int]func(SelectionAddress)
	nextListener int
}

var _ DocumentModel = (*HTMLDocument)(nil)

// NewHTMLDocument parses content into a new document.
func NewHTMLDocument(content string) (*HTMLDocument, error) {
	d := &HTMLDocument{listeners: make(map[int]func(SelectionAddress))}
	s, err := d.ParseSnapshot(content)
	if err != nil {
		return nil, err
	}
	if err := d.ApplySnapshot(s); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseSnapshot parses and canonicalises a serialised document.
func (d *HTMLDocument) ParseSnapshot(serialized string) (*Snapshot, error) {
	root, err := ParseHTML(serialized)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	canonical, err := RenderNode(root)
	if err != nil {
		return nil, fmt.Errorf("failed to render snapshot: %w", err)
	}
	return &Snapshot{html: canonical}, nil
}

// ApplySnapshot replaces the whole document.
func (d *HTMLDocument) ApplySnapshot(s *Snapshot) error {
	if s == nil {
		return errors.New("nil snapshot")
	}
	root, err := ParseHTML(s.html)
	if err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}
	d.root = root
	d.canonical = s.html
	d.generation++
	d.rebuildBlocks()
	return nil
}

// ApplyDelta patches the canonical HTML and replaces the document with the
// result. Like any replacement it invalidates node ids.
func (d *HTMLDocument) ApplyDelta(delta *Delta) error {
	patched, err := Patch(d.canonical, delta)
	if err != nil {
		return err
	}
	s, err := d.ParseSnapshot(patched)
	if err != nil {
		return err
	}
	return d.ApplySnapshot(s)
}

func (d *HTMLDocument) rebuildBlocks() {
	elems := blockElements(d.root)
	d.blocks = make([]Block, len(elems))
	for i, el := range elems {
		id, _ := d.NodeID(el)
		d.blocks[i] = Block{ID: id, Element: el, Text: TextContent(el)}
	}
}

// HTML returns the canonical serialisation of the current document.
func (d *HTMLDocument) HTML() string {
	return d.canonical
}

// Generation counts content replacements.
func (d *HTMLDocument) Generation() uint64 {
	return d.generation
}

func (d *HTMLDocument) Text() string {
	texts := make([]string, len(d.blocks))
	for i, b := range d.blocks {
		texts[i] = b.Text
	}
	return strings.Join(texts, blockSeparator)
}

func (d *HTMLDocument) Blocks() []Block {
	return d.blocks
}

// Root returns the document's root node.
func (d *HTMLDocument) Root() *html.Node {
	return d.root
}

func (d *HTMLDocument) ResolveElement(nodeID string) (*html.Node, bool) {
	gen, pathStr, ok := strings.Cut(nodeID, ":")
	if !ok {
		return nil, false
	}
	g, err := strconv.ParseUint(gen, 10, 64)
	if err != nil || g != d.generation {
		return nil, false
	}
	path, err := ParseNodePath(pathStr)
	if err != nil {
		return nil, false
	}
	n, err := GetNode(d.root, path)
	if err != nil {
		return nil, false
	}
	return n, true
}

func (d *HTMLDocument) NodeID(n *html.Node) (string, bool) {
	path, err := GetPath(d.root, n)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(d.generation, 10) + ":" + path.String(), true
}

func (d *HTMLDocument) Selection() (SelectionAddress, bool) {
	return d.selection, d.hasSelection
}

// SetSelection stores sel and notifies selection listeners synchronously.
func (d *HTMLDocument) SetSelection(sel SelectionAddress) error {
	d.selection = sel
	d.hasSelection = true

	ids := make([]int, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := d.listeners[id]; ok {
			fn(sel)
		}
	}
	return nil
}

func (d *HTMLDocument) OnSelectionChange(fn func(SelectionAddress)) Subscription {
	if d.listeners == nil {
		d.listeners = make(map[int]func(SelectionAddress))
	}
	id := d.nextListener
	d.nextListener++
	d.listeners[id] = fn
	return NewSubscription(func() { delete(d.listeners, id) })
}
