package vcursor

import "fmt"

// DefaultContextWindow is the number of characters taken on each side of a
// cursor when looking for it in an edited text.
const DefaultContextWindow = 10

// TransformOffset relocates offset from oldText onto newText by searching
// newText for the text around the old offset. It tries the whole context
// window, then the text after the offset, then the text before it, and
// finally clamps the old offset into newText. Among several matches the one
// closest to the old position wins.
//
// This is a heuristic: it is exact for edits away from the cursor and only
// approximate for edits that touch the context itself.
func TransformOffset(oldText, newText []rune, offset, window int) int {
	window = max(window, 0)
	offset = clamp(offset, 0, len(oldText))
	start := max(offset-window, 0)
	end := min(offset+window, len(oldText))

	if start < end {
		if i := nearestIndex(newText, oldText[start:end], start); i >= 0 {
			return clamp(i+offset-start, 0, len(newText))
		}
	}
	if after := oldText[offset:end]; len(after) > 0 {
		if i := nearestIndex(newText, after, offset); i >= 0 {
			return i
		}
	}
	if before := oldText[start:offset]; len(before) > 0 {
		if i := nearestIndex(newText, before, start); i >= 0 {
			return clamp(i+len(before), 0, len(newText))
		}
	}
	return min(offset, len(newText))
}

// Transform re-derives a LineColumn address taken against oldLayout so that
// it points at the same text in newLayout. NodeOffset addresses must be
// normalized against their own document first.
func Transform(addr DocumentAddress, oldLayout, newLayout *Layout, window int) (DocumentAddress, error) {
	if addr.Kind != KindLineColumn {
		return DocumentAddress{}, fmt.Errorf("%w: cannot transform %s address", ErrTransformFailed, addr.Kind)
	}
	off, err := oldLayout.Offset(addr.Line, addr.Column)
	if err != nil {
		return DocumentAddress{}, fmt.Errorf("%w: %s: %w", ErrTransformFailed, addr, err)
	}
	if newLayout.Lines() == 0 {
		return DocumentAddress{}, fmt.Errorf("%w: empty document", ErrTransformFailed)
	}
	newOff := TransformOffset(oldLayout.Runes(), newLayout.Runes(), off, window)
	line, col, err := newLayout.Position(newOff)
	if err != nil {
		return DocumentAddress{}, fmt.Errorf("%w: offset %d: %w", ErrTransformFailed, newOff, err)
	}
	return LineColumn(line, col), nil
}

// TransformText is Transform over raw linear texts.
func TransformText(addr DocumentAddress, oldText, newText string) (DocumentAddress, error) {
	return Transform(addr, LayoutFromText(oldText), LayoutFromText(newText), DefaultContextWindow)
}

// TransformSelection transforms both ends of sel.
func TransformSelection(sel SelectionAddress, oldLayout, newLayout *Layout, window int) (SelectionAddress, error) {
	anchor, err := Transform(sel.Anchor, oldLayout, newLayout, window)
	if err != nil {
		return SelectionAddress{}, err
	}
	focus := anchor
	if !sel.Collapsed {
		if focus, err = Transform(sel.Focus, oldLayout, newLayout, window); err != nil {
			return SelectionAddress{}, err
		}
	}
	return SelectionAddress{Anchor: anchor, Focus: focus, Collapsed: anchor == focus}, nil
}
