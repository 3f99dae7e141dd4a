package vcursor

import (
	"errors"
	"testing"
)

func TestTransformText(t *testing.T) {
	tests := []struct {
		name    string
		addr    DocumentAddress
		oldText string
		newText string
		want    DocumentAddress
	}{
		{
			name:    "insertion before the caret",
			addr:    LineColumn(0, 6),
			oldText: "Hello world",
			newText: "Hello, world",
			want:    LineColumn(0, 7),
		},
		{
			name:    "insertion after the caret",
			addr:    LineColumn(0, 2),
			oldText: "Hello world",
			newText: "Hello world, again",
			want:    LineColumn(0, 2),
		},
		{
			name:    "new line above",
			addr:    LineColumn(1, 3),
			oldText: "first\nsecond line",
			newText: "zeroth\nfirst\nsecond line",
			want:    LineColumn(2, 3),
		},
		{
			name:    "line removed above",
			addr:    LineColumn(2, 4),
			oldText: "a\nb\nthird line here",
			newText: "a\nthird line here",
			want:    LineColumn(1, 4),
		},
		{
			name:    "text after the caret rewritten",
			addr:    LineColumn(0, 5),
			oldText: "Hello world",
			newText: "Hello there",
			want:    LineColumn(0, 5),
		},
		{
			name:    "everything gone",
			addr:    LineColumn(0, 8),
			oldText: "abcdefghij",
			newText: "xyz",
			want:    LineColumn(0, 3),
		},
		{
			name:    "repeated context prefers the nearest copy",
			addr:    LineColumn(0, 13),
			oldText: "ab ab ab ab ab ab",
			newText: "ab ab ab ab ab ab",
			want:    LineColumn(0, 13),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TransformText(tt.addr, tt.oldText, tt.newText)
			if err != nil {
				t.Fatalf("TransformText: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// Transforming against an unchanged document must not move anything.
func TestTransformIdentity(t *testing.T) {
	l := LayoutFromText("Line one\nLine two\n\nthe end of the line one")
	for line := 0; line < l.Lines(); line++ {
		for col := 0; col <= l.LineLen(line); col++ {
			addr := LineColumn(line, col)
			got, err := Transform(addr, l, l, DefaultContextWindow)
			if err != nil {
				t.Fatalf("Transform(%v): %v", addr, err)
			}
			if got != addr {
				t.Errorf("Transform(%v) = %v", addr, got)
			}
		}
	}
}

func TestTransformFailures(t *testing.T) {
	l := LayoutFromText("abc")

	if _, err := Transform(NodeOffset("1:0", 0), l, l, DefaultContextWindow); !errors.Is(err, ErrTransformFailed) {
		t.Errorf("node address: %v", err)
	}
	if _, err := Transform(LineColumn(4, 0), l, l, DefaultContextWindow); !errors.Is(err, ErrTransformFailed) {
		t.Errorf("line outside old text: %v", err)
	}
	if _, err := Transform(LineColumn(0, 1), l, NewLayout(nil), DefaultContextWindow); !errors.Is(err, ErrTransformFailed) {
		t.Errorf("empty new document: %v", err)
	}
}

func TestTransformSelection(t *testing.T) {
	oldL := LayoutFromText("Hello world")
	newL := LayoutFromText("Oh, Hello world")

	sel := SelectionAddress{Anchor: LineColumn(0, 0), Focus: LineColumn(0, 5)}
	got, err := TransformSelection(sel, oldL, newL, DefaultContextWindow)
	if err != nil {
		t.Fatalf("TransformSelection: %v", err)
	}
	if got.Anchor != LineColumn(0, 4) || got.Focus != LineColumn(0, 9) || got.Collapsed {
		t.Errorf("got %+v", got)
	}

	caret, err := TransformSelection(Caret(LineColumn(0, 2)), oldL, newL, DefaultContextWindow)
	if err != nil {
		t.Fatalf("TransformSelection: %v", err)
	}
	if !caret.Collapsed || caret.Focus != LineColumn(0, 6) {
		t.Errorf("caret = %+v", caret)
	}
}

func TestTransformOffsetNegativeWindow(t *testing.T) {
	got := TransformOffset([]rune("Hello world"), []rune("Hello, world"), 6, -1)
	if got != 6 {
		t.Errorf("TransformOffset = %d, want the clamped offset 6", got)
	}
}
