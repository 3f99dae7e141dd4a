package vcursor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseHTML parses a string into an HTML node tree. The parser always
// normalises the input into a full html/head/body document.
func ParseHTML(content string) (*html.Node, error) {
	return html.Parse(strings.NewReader(content))
}

// RenderNode converts a node tree back to a string.
func RenderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// GetNode traverses the tree using the provided path to find a specific node.
// The path indices refer to the FirstChild/NextSibling order.
func GetNode(root *html.Node, path NodePath) (*html.Node, error) {
	current := root
	for i, index := range path {
		child := getChildAtIndex(current, index)
		if child == nil {
			return nil, fmt.Errorf("node not found at path %v (failed at index %d, step %d)", path, index, i)
		}
		current = child
	}
	return current, nil
}

// getChildAtIndex finds the Nth child of a node.
func getChildAtIndex(parent *html.Node, index int) *html.Node {
	count := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if count == index {
			return c
		}
		count++
	}
	return nil
}

// GetPath finds the path from root to the target node.
func GetPath(root, target *html.Node) (NodePath, error) {
	var path NodePath
	for current := target; current != root; current = current.Parent {
		parent := current.Parent
		if parent == nil {
			return nil, errors.New("target node is not a descendant of root")
		}
		index := getChildIndex(parent, current)
		if index == -1 {
			return nil, errors.New("integrity error: child not found in parent's list")
		}
		path = append(NodePath{index}, path...)
	}
	return path, nil
}

// getChildIndex returns the index of child within parent.
func getChildIndex(parent, child *html.Node) int {
	count := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c == child {
			return count
		}
		count++
	}
	return -1
}

func getChildrenList(n *html.Node) []*html.Node {
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	return children
}

var blockAtoms = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true,
	atom.Blockquote: true, atom.Dd: true, atom.Div: true, atom.Dl: true,
	atom.Dt: true, atom.Figcaption: true, atom.Figure: true,
	atom.Footer: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tbody: true, atom.Td: true, atom.Tfoot: true, atom.Th: true,
	atom.Thead: true, atom.Tr: true, atom.Ul: true,
}

// skipped elements never contribute text.
func skipped(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Head:
		return true
	}
	return false
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// blockElements returns the innermost block-level elements under body in
// document order. A body without block elements is itself the only block.
func blockElements(root *html.Node) []*html.Node {
	body := findElement(root, atom.Body)
	if body == nil {
		return nil
	}
	blocks, found := appendBlocks(body, nil)
	if !found {
		return []*html.Node{body}
	}
	return blocks
}

func appendBlocks(n *html.Node, out []*html.Node) ([]*html.Node, bool) {
	found := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || skipped(c) {
			continue
		}
		var inner bool
		out, inner = appendBlocks(c, out)
		if inner {
			found = true
			continue
		}
		if blockAtoms[c.DataAtom] {
			out = append(out, c)
			found = true
		}
	}
	return out, found
}

// WalkTextLeaves calls fn for every text-bearing leaf under n in depth-first
// order. It stops early and returns false when fn returns false.
func WalkTextLeaves(n *html.Node, fn func(leaf *html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			if c.Data == "" {
				continue
			}
			if !fn(c) {
				return false
			}
		case c.Type == html.ElementNode && !skipped(c):
			if !WalkTextLeaves(c, fn) {
				return false
			}
		}
	}
	return true
}

// TextContent returns the concatenated text of all text leaves under n.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	WalkTextLeaves(n, func(leaf *html.Node) bool {
		sb.WriteString(leaf.Data)
		return true
	})
	return sb.String()
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func isAncestor(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
