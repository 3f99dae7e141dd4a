package vcursor

import "strings"

// blockSeparator occupies one offset unit between consecutive blocks in the
// plain-text projection.
const blockSeparator = "\n"

// Layout is the plain-text projection of a document: its ordered block texts
// and their rune offsets in the joined linear text. A Layout is immutable.
type Layout struct {
	text   []rune
	starts []int
	lens   []int
}

// NewLayout builds a layout from ordered block texts.
func NewLayout(blocks []string) *Layout {
	l := &Layout{
		starts: make([]int, len(blocks)),
		lens:   make([]int, len(blocks)),
	}
	l.text = []rune(strings.Join(blocks, blockSeparator))
	pos := 0
	for i, b := range blocks {
		n := runeLen(b)
		l.starts[i] = pos
		l.lens[i] = n
		pos += n + 1
	}
	return l
}

// LayoutOf snapshots the layout of doc.
func LayoutOf(doc DocumentModel) *Layout {
	blocks := doc.Blocks()
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return NewLayout(texts)
}

// LayoutFromText splits a linear text back into blocks.
func LayoutFromText(text string) *Layout {
	return NewLayout(strings.Split(text, blockSeparator))
}

// Text returns the linear text.
func (l *Layout) Text() string {
	return string(l.text)
}

// Runes returns the linear text as runes. Callers must not modify it.
func (l *Layout) Runes() []rune {
	return l.text
}

// Len is the rune length of the linear text.
func (l *Layout) Len() int {
	return len(l.text)
}

// Lines is the number of blocks.
func (l *Layout) Lines() int {
	return len(l.lens)
}

// LineLen is the rune length of block i.
func (l *Layout) LineLen(i int) int {
	return l.lens[i]
}

// Offset converts a line/column pair into a linear offset. Columns past the
// end of their line clamp to the line end. A line past the last block
// yields the end of the text together with ErrAddressNotFound.
func (l *Layout) Offset(line, column int) (int, error) {
	n := len(l.lens)
	switch {
	case n == 0:
		return 0, ErrAddressNotFound
	case line < 0:
		return 0, ErrAddressNotFound
	case line >= n:
		return l.starts[n-1] + l.lens[n-1], ErrAddressNotFound
	}
	return l.starts[line] + clamp(column, 0, l.lens[line]), nil
}

// Position converts a linear offset into a line/column pair. An offset equal
// to a block's end belongs to that block. Offsets outside the text clamp to
// the nearest end and report ErrAddressNotFound.
func (l *Layout) Position(offset int) (line, column int, err error) {
	n := len(l.lens)
	if n == 0 {
		return 0, 0, ErrAddressNotFound
	}
	if offset < 0 {
		return 0, 0, ErrAddressNotFound
	}
	for i := range l.lens {
		if offset <= l.starts[i]+l.lens[i] {
			return i, offset - l.starts[i], nil
		}
	}
	return n - 1, l.lens[n-1], ErrAddressNotFound
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
