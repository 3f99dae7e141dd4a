package vcursor

import (
	"errors"
	"testing"
)

func TestHTMLDocumentText(t *testing.T) {
	doc := newDoc(t, `<h1>Title</h1><ul><li>one</li><li>two</li></ul><p></p>`)
	if got, want := doc.Text(), "Title\none\ntwo\n"; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if n := len(doc.Blocks()); n != 4 {
		t.Fatalf("got %d blocks, want 4", n)
	}
	for _, b := range doc.Blocks() {
		el, ok := doc.ResolveElement(b.ID)
		if !ok || el != b.Element {
			t.Errorf("block id %s does not resolve to its element", b.ID)
		}
	}
}

func TestHTMLDocumentResolveElement(t *testing.T) {
	doc := newDoc(t, `<p>x</p>`)
	for _, id := range []string{"", "1", "x:0.1", "1:0.a", "1:9.9", "2:0.1.0"} {
		if _, ok := doc.ResolveElement(id); ok {
			t.Errorf("ResolveElement(%q) succeeded", id)
		}
	}
	if _, ok := doc.ResolveElement("1:0.1.0"); !ok {
		t.Error("ResolveElement(1:0.1.0) failed")
	}
}

func TestHTMLDocumentApplyDelta(t *testing.T) {
	doc := newDoc(t, `<p>Hello world</p>`)
	gen := doc.Generation()

	other := newDoc(t, `<p>Hello, world</p>`)
	delta, err := Diff(doc.HTML(), other.HTML(), "peer#1")
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.ApplyDelta(delta); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if doc.Text() != "Hello, world" {
		t.Errorf("Text = %q", doc.Text())
	}
	if doc.Generation() == gen {
		t.Error("generation did not change")
	}

	// the same delta no longer matches the base
	if err := doc.ApplyDelta(delta); !errors.Is(err, ErrBaseHashMismatch) {
		t.Errorf("reapplied delta: %v", err)
	}
	if doc.Text() != "Hello, world" {
		t.Error("failed delta modified the document")
	}
}

func TestHTMLDocumentSelectionListeners(t *testing.T) {
	doc := newDoc(t, `<p>x</p>`)
	if _, ok := doc.Selection(); ok {
		t.Fatal("new document has a selection")
	}

	var seen []SelectionAddress
	sub := doc.OnSelectionChange(func(sel SelectionAddress) { seen = append(seen, sel) })
	sel := Caret(LineColumn(0, 1))
	if err := doc.SetSelection(sel); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != sel {
		t.Fatalf("listener saw %v", seen)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	_ = doc.SetSelection(Caret(LineColumn(0, 0)))
	if len(seen) != 1 {
		t.Error("listener called after Unsubscribe")
	}
	if got, _ := doc.Selection(); got.Anchor != LineColumn(0, 0) {
		t.Errorf("Selection = %+v", got)
	}
}
