package vcursor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/net/html"
)

// Diff computes the operations that turn oldHTML into newHTML. Operations
// are meant to be applied in order: each one addresses the tree as left by
// the ones before it.
func Diff(oldHTML, newHTML, author string) (*Delta, error) {
	oldDoc, err := ParseHTML(oldHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse old HTML: %w", err)
	}
	newDoc, err := ParseHTML(newHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse new HTML: %w", err)
	}

	ops, err := diffNodes(oldDoc, newDoc, NodePath{})
	if err != nil {
		return nil, err
	}
	return &Delta{
		BaseHash:   HashHTML(oldHTML),
		Operations: ops,
		Timestamp:  time.Now().Unix(),
		Author:     author,
	}, nil
}

// HashHTML returns the hash a Delta made against s records as its base.
func HashHTML(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// diffNodes compares two nodes occupying the same position.
func diffNodes(oldNode, newNode *html.Node, path NodePath) ([]Operation, error) {
	if !sameKind(oldNode, newNode) {
		return replaceNode(newNode, path)
	}

	var ops []Operation
	switch oldNode.Type {
	case html.ElementNode:
		ops = append(ops, diffAttributes(oldNode, newNode, path)...)
	case html.TextNode:
		ops = append(ops, diffText(oldNode.Data, newNode.Data, path)...)
	case html.CommentNode:
		if oldNode.Data != newNode.Data {
			ops = append(ops, Operation{
				Type:     OpUpdateText,
				Path:     path,
				OldValue: oldNode.Data,
				NewValue: newNode.Data,
			})
		}
	}

	childOps, err := diffChildren(oldNode, newNode, path)
	if err != nil {
		return nil, err
	}
	return append(ops, childOps...), nil
}

func sameKind(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == html.ElementNode {
		return a.DataAtom == b.DataAtom && a.Data == b.Data
	}
	return true
}

// replaceNode deletes the node at path and inserts newNode in its place.
func replaceNode(newNode *html.Node, path NodePath) ([]Operation, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("cannot replace the document root")
	}
	data, err := RenderNode(newNode)
	if err != nil {
		return nil, err
	}
	parent := append(NodePath(nil), path[:len(path)-1]...)
	return []Operation{
		{Type: OpDeleteNode, Path: path},
		{Type: OpInsertNode, Path: parent, Position: path[len(path)-1], NodeData: data},
	}, nil
}

// diffText emits the rune-level change between two text values: one delete
// and/or one insert between their common prefix and suffix.
func diffText(oldText, newText string, path NodePath) []Operation {
	if oldText == newText {
		return nil
	}
	o, n := []rune(oldText), []rune(newText)
	prefix := 0
	for prefix < len(o) && prefix < len(n) && o[prefix] == n[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(o)-prefix && suffix < len(n)-prefix && o[len(o)-1-suffix] == n[len(n)-1-suffix] {
		suffix++
	}

	var ops []Operation
	if removed := o[prefix : len(o)-suffix]; len(removed) > 0 {
		ops = append(ops, Operation{
			Type:     OpDeleteText,
			Path:     path,
			Position: prefix,
			OldValue: string(removed),
		})
	}
	if added := n[prefix : len(n)-suffix]; len(added) > 0 {
		ops = append(ops, Operation{
			Type:     OpInsertText,
			Path:     path,
			Position: prefix,
			NewValue: string(added),
		})
	}
	return ops
}

func diffAttributes(oldNode, newNode *html.Node, path NodePath) []Operation {
	oldAttrs := make(map[string]string, len(oldNode.Attr))
	for _, a := range oldNode.Attr {
		oldAttrs[a.Key] = a.Val
	}
	newAttrs := make(map[string]string, len(newNode.Attr))
	for _, a := range newNode.Attr {
		newAttrs[a.Key] = a.Val
	}

	var ops []Operation
	for _, k := range sortedKeys(oldAttrs) {
		vOld := oldAttrs[k]
		vNew, ok := newAttrs[k]
		switch {
		case !ok:
			ops = append(ops, Operation{Type: OpRemoveAttr, Path: path, Key: k, OldValue: vOld})
		case vOld != vNew:
			ops = append(ops, Operation{Type: OpUpdateAttr, Path: path, Key: k, OldValue: vOld, NewValue: vNew})
		}
	}
	for _, k := range sortedKeys(newAttrs) {
		if _, ok := oldAttrs[k]; !ok {
			ops = append(ops, Operation{Type: OpUpdateAttr, Path: path, Key: k, NewValue: newAttrs[k]})
		}
	}
	return ops
}

// diffChildren matches children by index. Surplus old children are deleted
// from the end backwards and surplus new children appended, so an insertion
// in the middle of a list shows up as changes to every later sibling.
func diffChildren(oldNode, newNode *html.Node, parentPath NodePath) ([]Operation, error) {
	oldChildren := getChildrenList(oldNode)
	newChildren := getChildrenList(newNode)
	common := min(len(oldChildren), len(newChildren))

	var ops []Operation
	for i := 0; i < common; i++ {
		childPath := append(append(NodePath(nil), parentPath...), i)
		childOps, err := diffNodes(oldChildren[i], newChildren[i], childPath)
		if err != nil {
			return nil, err
		}
		ops = append(ops, childOps...)
	}

	for i := len(oldChildren) - 1; i >= common; i-- {
		ops = append(ops, Operation{
			Type: OpDeleteNode,
			Path: append(append(NodePath(nil), parentPath...), i),
		})
	}

	for i := common; i < len(newChildren); i++ {
		data, err := RenderNode(newChildren[i])
		if err != nil {
			return nil, err
		}
		ops = append(ops, Operation{
			Type:     OpInsertNode,
			Path:     append(NodePath(nil), parentPath...),
			Position: i,
			NodeData: data,
		})
	}
	return ops, nil
}
