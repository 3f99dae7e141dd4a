package vcursor

import (
	"errors"
	"testing"
)

func mustDiff(t *testing.T, oldHTML, newHTML, author string) *Delta {
	t.Helper()
	d, err := Diff(oldHTML, newHTML, author)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	return d
}

func TestMergeConcurrentEdits(t *testing.T) {
	tests := []struct {
		name string
		base string
		a    string
		b    string
		want string
	}{
		{
			name: "items added at both ends",
			base: `<ul><li>A</li><li>B</li></ul>`,
			a:    `<ul><li>X</li><li>A</li><li>B</li></ul>`,
			b:    `<ul><li>A</li><li>B</li><li>Y</li></ul>`,
			want: `<ul><li>X</li><li>A</li><li>B</li><li>Y</li></ul>`,
		},
		{
			name: "text inserts in one node",
			base: `<p>Hello world</p>`,
			a:    `<p>Hello, world</p>`,
			b:    `<p>Hello world!</p>`,
			want: `<p>Hello, world!</p>`,
		},
		{
			name: "delete before an insert",
			base: `<p>one two three</p>`,
			a:    `<p>one three</p>`,
			b:    `<p>one two three four</p>`,
			want: `<p>one three four</p>`,
		},
		{
			name: "different attributes",
			base: `<div class="a" id="x">t</div>`,
			a:    `<div class="b" id="x">t</div>`,
			b:    `<div class="a">t</div>`,
			want: `<div class="b">t</div>`,
		},
		{
			name: "same item removed twice",
			base: `<ul><li>A</li><li>B</li></ul>`,
			a:    `<ul><li>A</li></ul>`,
			b:    `<ul><li>A</li></ul>`,
			want: `<ul><li>A</li></ul>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, delta, conflicts, err := Merge(tt.base, mustDiff(t, tt.base, tt.a, "a"), mustDiff(t, tt.base, tt.b, "b"))
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if len(conflicts) > 0 {
				printJSON(conflicts)
				t.Fatalf("unexpected conflicts")
			}
			if got, want := canonical(t, merged), canonical(t, tt.want); got != want {
				printJSON(delta.Operations)
				t.Errorf("merge mismatch\nwant: %s\ngot:  %s", want, got)
			}
		})
	}
}

func TestMergeAll(t *testing.T) {
	base := `<div><p>Start</p><p>Line 1</p></div>`
	deltas := []*Delta{
		mustDiff(t, base, `<div><p>Start</p><p>Line 2</p></div>`, "u1"),
		mustDiff(t, base, `<div><p>Starts</p><p>Line 1</p></div>`, "u2"),
		mustDiff(t, base, `<div class="doc"><p>Start</p><p>Line 1</p></div>`, "u3"),
	}

	merged, delta, conflicts, err := MergeAll(base, deltas)
	if err != nil {
		t.Fatalf("MergeAll: %v", err)
	}
	if len(conflicts) > 0 {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}
	want := `<div class="doc"><p>Starts</p><p>Line 2</p></div>`
	if got := canonical(t, merged); got != canonical(t, want) {
		t.Errorf("merge mismatch\nwant: %s\ngot:  %s", canonical(t, want), got)
	}
	if delta.Author != mergeAuthor {
		t.Errorf("author = %q, want %q", delta.Author, mergeAuthor)
	}
}

func TestMergeConflicts(t *testing.T) {
	tests := []struct {
		name string
		base string
		a    string
		b    string
		want int
	}{
		{
			name: "same text replaced differently",
			base: `<div>Text</div>`,
			a:    `<div>A</div>`,
			b:    `<div>B</div>`,
			want: 1,
		},
		{
			name: "same attribute set differently",
			base: `<div class="a">t</div>`,
			a:    `<div class="b">t</div>`,
			b:    `<div class="c">t</div>`,
			want: 1,
		},
		{
			name: "edit inside removed item",
			base: `<ul><li>A</li><li>B</li></ul>`,
			a:    `<ul><li>A</li></ul>`,
			b:    `<ul><li>A</li><li>Bee</li></ul>`,
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, delta, conflicts, err := Merge(tt.base, mustDiff(t, tt.base, tt.a, "a"), mustDiff(t, tt.base, tt.b, "b"))
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if len(conflicts) != tt.want {
				printJSON(conflicts)
				t.Fatalf("got %d conflicts, want %d", len(conflicts), tt.want)
			}
			if merged != "" || delta != nil {
				t.Error("conflicting merge must not produce a result")
			}
		})
	}
}

func TestMergeRejectsForeignBase(t *testing.T) {
	base := `<p>a</p>`
	other := mustDiff(t, `<p>b</p>`, `<p>bc</p>`, "b")
	_, _, _, err := Merge(base, mustDiff(t, base, `<p>ab</p>`, "a"), other)
	if !errors.Is(err, ErrBaseHashMismatch) {
		t.Fatalf("got %v, want ErrBaseHashMismatch", err)
	}
}
