package vcursor

import (
	"errors"
	"testing"
)

func TestLayoutOffsets(t *testing.T) {
	l := NewLayout([]string{"Line one", "Line two"})
	if l.Text() != "Line one\nLine two" {
		t.Fatalf("Text = %q", l.Text())
	}

	tests := []struct {
		line, col int
		want      int
		notFound  bool
	}{
		{line: 0, col: 0, want: 0},
		{line: 0, col: 8, want: 8},
		{line: 1, col: 0, want: 9},
		{line: 1, col: 4, want: 13},
		{line: 1, col: 99, want: 17},
		{line: 2, col: 0, want: 17, notFound: true},
		{line: -1, col: 3, want: 0, notFound: true},
	}
	for _, tt := range tests {
		got, err := l.Offset(tt.line, tt.col)
		if got != tt.want || errors.Is(err, ErrAddressNotFound) != tt.notFound {
			t.Errorf("Offset(%d, %d) = %d, %v; want %d (notFound=%v)", tt.line, tt.col, got, err, tt.want, tt.notFound)
		}
	}
}

func TestLayoutPositions(t *testing.T) {
	l := NewLayout([]string{"ab", "", "cd"})

	tests := []struct {
		offset    int
		line, col int
		notFound  bool
	}{
		{offset: 0, line: 0, col: 0},
		// the end of a block belongs to that block, not the next
		{offset: 2, line: 0, col: 2},
		{offset: 3, line: 1, col: 0},
		{offset: 4, line: 2, col: 0},
		{offset: 6, line: 2, col: 2},
		{offset: 7, line: 2, col: 2, notFound: true},
		{offset: -4, line: 0, col: 0, notFound: true},
	}
	for _, tt := range tests {
		line, col, err := l.Position(tt.offset)
		if line != tt.line || col != tt.col || errors.Is(err, ErrAddressNotFound) != tt.notFound {
			t.Errorf("Position(%d) = %d:%d, %v; want %d:%d (notFound=%v)", tt.offset, line, col, err, tt.line, tt.col, tt.notFound)
		}
	}
}

func TestEmptyLayout(t *testing.T) {
	l := NewLayout(nil)
	if _, err := l.Offset(0, 0); !errors.Is(err, ErrAddressNotFound) {
		t.Errorf("Offset on empty layout: %v", err)
	}
	if _, _, err := l.Position(0); !errors.Is(err, ErrAddressNotFound) {
		t.Errorf("Position on empty layout: %v", err)
	}
}

func TestLayoutFromText(t *testing.T) {
	l := LayoutFromText("a\nbc\n")
	if l.Lines() != 3 {
		t.Fatalf("Lines = %d, want 3", l.Lines())
	}
	if l.LineLen(1) != 2 || l.LineLen(2) != 0 {
		t.Errorf("line lengths = %d, %d", l.LineLen(1), l.LineLen(2))
	}
	if l.Len() != 5 {
		t.Errorf("Len = %d, want 5", l.Len())
	}
}
