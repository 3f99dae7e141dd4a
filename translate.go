package vcursor

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"
)

// locate resolves addr to a block index and a rune column inside it. When
// the address cannot be resolved it returns the end of the document with
// ErrAddressNotFound.
func locate(doc DocumentModel, addr DocumentAddress) (block, column int, err error) {
	blocks := doc.Blocks()
	n := len(blocks)
	if n == 0 {
		if addr.Kind != KindLineColumn && addr.Kind != KindNodeOffset {
			return 0, 0, fmt.Errorf("%w: %q", ErrUnknownAddressKind, addr.Kind)
		}
		return 0, 0, ErrAddressNotFound
	}
	end := func() (int, int, error) {
		return n - 1, runeLen(blocks[n-1].Text), ErrAddressNotFound
	}

	switch addr.Kind {
	case KindLineColumn:
		if addr.Line < 0 {
			return 0, 0, ErrAddressNotFound
		}
		if addr.Line >= n {
			return end()
		}
		return addr.Line, clamp(addr.Column, 0, runeLen(blocks[addr.Line].Text)), nil

	case KindNodeOffset:
		el, ok := doc.ResolveElement(addr.NodeID)
		if !ok {
			return end()
		}
		for i, b := range blocks {
			if !isAncestor(b.Element, el) {
				continue
			}
			col, found := columnOf(b.Element, el, addr.Offset)
			if !found {
				return end()
			}
			return i, col, nil
		}
		// el spans several blocks (a list, the body): the offset counts
		// through its first block onwards, separators included.
		for i, b := range blocks {
			if isAncestor(el, b.Element) {
				l := LayoutOf(doc)
				off, _ := l.Offset(i, 0)
				line, col, err := l.Position(off + max(addr.Offset, 0))
				return line, col, err
			}
		}
		return end()

	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownAddressKind, addr.Kind)
	}
}

// columnOf returns the column of (target, offset) within block, counting the
// text leaves that precede target in document order.
func columnOf(block, target *html.Node, offset int) (int, bool) {
	if target == block {
		return clamp(offset, 0, runeLen(TextContent(block))), true
	}
	preceding := 0
	col, found := 0, false
	walkNodes(block, func(n *html.Node) bool {
		if n == target {
			col = preceding + clamp(offset, 0, runeLen(TextContent(n)))
			found = true
			return false
		}
		if n.Type == html.TextNode {
			preceding += runeLen(n.Data)
		}
		return true
	})
	return col, found
}

// walkNodes visits every node under n in pre-order, skipping the subtrees of
// non-text elements. It stops when fn returns false.
func walkNodes(n *html.Node, fn func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if skipped(c) {
			continue
		}
		if !fn(c) {
			return false
		}
		if !walkNodes(c, fn) {
			return false
		}
	}
	return true
}

// AddressToLinearOffset converts addr into an offset in the document's linear
// text. On ErrAddressNotFound the returned offset is the clamped fallback
// (the end of the last block).
func AddressToLinearOffset(doc DocumentModel, addr DocumentAddress) (int, error) {
	block, col, err := locate(doc, addr)
	if errors.Is(err, ErrUnknownAddressKind) {
		return 0, err
	}
	off, _ := LayoutOf(doc).Offset(block, col)
	return off, err
}

// LinearOffsetToAddress converts a linear offset into a LineColumn address.
// Offsets beyond the text clamp to its end and report ErrAddressNotFound.
func LinearOffsetToAddress(doc DocumentModel, offset int) (DocumentAddress, error) {
	line, col, err := LayoutOf(doc).Position(offset)
	return LineColumn(line, col), err
}

// NormalizeAddress re-expresses addr as a LineColumn address, which survives
// node-identity churn. The clamped fallback is returned with
// ErrAddressNotFound.
func NormalizeAddress(doc DocumentModel, addr DocumentAddress) (DocumentAddress, error) {
	block, col, err := locate(doc, addr)
	if errors.Is(err, ErrUnknownAddressKind) {
		return DocumentAddress{}, err
	}
	return LineColumn(block, col), err
}

// NormalizeSelection normalizes both ends of sel. Like NormalizeAddress it
// returns the clamped selection together with ErrAddressNotFound.
func NormalizeSelection(doc DocumentModel, sel SelectionAddress) (SelectionAddress, error) {
	anchor, err := NormalizeAddress(doc, sel.Anchor)
	if errors.Is(err, ErrUnknownAddressKind) {
		return SelectionAddress{}, err
	}
	focus, ferr := NormalizeAddress(doc, sel.Focus)
	if errors.Is(ferr, ErrUnknownAddressKind) {
		return SelectionAddress{}, ferr
	}
	if err == nil {
		err = ferr
	}
	return SelectionAddress{Anchor: anchor, Focus: focus, Collapsed: anchor == focus}, err
}

// AddressToScreenRange resolves addr to a collapsed renderable range. Lines
// past the end clamp to the last block's end; unknown node ids report
// ErrAddressNotFound.
func AddressToScreenRange(doc DocumentModel, addr DocumentAddress) (ScreenRange, error) {
	pos, err := screenPositionOf(doc, addr)
	if err != nil {
		return ScreenRange{}, err
	}
	return ScreenRange{Start: pos, End: pos}, nil
}

// SelectionToScreenRange resolves both ends of sel.
func SelectionToScreenRange(doc DocumentModel, sel SelectionAddress) (ScreenRange, error) {
	start, err := screenPositionOf(doc, sel.Anchor)
	if err != nil {
		return ScreenRange{}, err
	}
	if sel.Collapsed {
		return ScreenRange{Start: start, End: start}, nil
	}
	end, err := screenPositionOf(doc, sel.Focus)
	if err != nil {
		return ScreenRange{}, err
	}
	return ScreenRange{Start: start, End: end}, nil
}

// AddressToNodeOffset re-expresses addr as the NodeOffset of the text leaf
// that renders it, or of the block element itself for an empty block.
func AddressToNodeOffset(doc DocumentModel, addr DocumentAddress) (DocumentAddress, error) {
	pos, err := screenPositionOf(doc, addr)
	if err != nil {
		return DocumentAddress{}, err
	}
	id, ok := doc.NodeID(pos.Node)
	if !ok {
		return DocumentAddress{}, ErrAddressNotFound
	}
	return NodeOffset(id, pos.Offset), nil
}

func screenPositionOf(doc DocumentModel, addr DocumentAddress) (ScreenPosition, error) {
	block, col, err := locate(doc, addr)
	if err != nil && (addr.Kind != KindLineColumn || !errors.Is(err, ErrAddressNotFound)) {
		return ScreenPosition{}, err
	}
	blocks := doc.Blocks()
	if len(blocks) == 0 {
		return ScreenPosition{}, ErrAddressNotFound
	}
	return leafPosition(blocks[block].Element, col), nil
}

// leafPosition walks the text leaves of el until col falls inside one. Past
// the last leaf it clamps to that leaf's end; an element without leaves
// yields a virtual position on the element itself.
func leafPosition(el *html.Node, col int) ScreenPosition {
	var (
		pos      ScreenPosition
		found    bool
		last     *html.Node
		consumed int
	)
	WalkTextLeaves(el, func(leaf *html.Node) bool {
		n := runeLen(leaf.Data)
		if col <= consumed+n {
			pos = ScreenPosition{Node: leaf, Offset: max(col-consumed, 0)}
			found = true
			return false
		}
		consumed += n
		last = leaf
		return true
	})
	switch {
	case found:
		return pos
	case last != nil:
		return ScreenPosition{Node: last, Offset: runeLen(last.Data)}
	default:
		return ScreenPosition{Node: el, Offset: 0, Virtual: true}
	}
}
