package vcursor

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Patch applies delta to baseHTML, which must hash to delta.BaseHash.
func Patch(baseHTML string, delta *Delta) (string, error) {
	if delta == nil {
		return "", errors.New("nil delta")
	}
	if got := HashHTML(baseHTML); got != delta.BaseHash {
		return "", fmt.Errorf("%w: expected %s, got %s", ErrBaseHashMismatch, delta.BaseHash, got)
	}

	doc, err := ParseHTML(baseHTML)
	if err != nil {
		return "", err
	}
	for i, op := range delta.Operations {
		if err := applyOp(doc, op); err != nil {
			return "", fmt.Errorf("failed to apply op %d (%s): %w", i, op.Type, err)
		}
	}
	return RenderNode(doc)
}

func applyOp(root *html.Node, op Operation) error {
	switch op.Type {
	case OpUpdateText:
		node, err := GetNode(root, op.Path)
		if err != nil {
			return err
		}
		if node.Type != html.TextNode && node.Type != html.CommentNode {
			return fmt.Errorf("target of %s is not a text node (type=%d)", op.Type, node.Type)
		}
		if node.Data != op.OldValue {
			return fmt.Errorf("%s old value mismatch: want %q, got %q", op.Type, op.OldValue, node.Data)
		}
		node.Data = op.NewValue

	case OpInsertText, OpDeleteText:
		node, err := GetNode(root, op.Path)
		if err != nil {
			return err
		}
		if node.Type != html.TextNode {
			return fmt.Errorf("target of %s is not a text node (type=%d)", op.Type, node.Type)
		}
		text := []rune(node.Data)
		if op.Position < 0 || op.Position > len(text) {
			return fmt.Errorf("%s position %d out of range [0, %d]", op.Type, op.Position, len(text))
		}
		if op.Type == OpInsertText {
			node.Data = string(text[:op.Position]) + op.NewValue + string(text[op.Position:])
			break
		}
		end := op.Position + runeLen(op.OldValue)
		if end > len(text) || string(text[op.Position:end]) != op.OldValue {
			return fmt.Errorf("%s old value mismatch at %d: want %q", op.Type, op.Position, op.OldValue)
		}
		node.Data = string(text[:op.Position]) + string(text[end:])

	case OpUpdateAttr, OpRemoveAttr:
		node, err := GetNode(root, op.Path)
		if err != nil {
			return err
		}
		if node.Type != html.ElementNode {
			return fmt.Errorf("target of %s is not an element", op.Type)
		}
		if op.Type == OpRemoveAttr {
			removeAttr(node, op.Key)
		} else {
			setAttr(node, op.Key, op.NewValue)
		}

	case OpInsertNode:
		parent, err := GetNode(root, op.Path)
		if err != nil {
			return err
		}
		// Fragment parsing depends on the context element (<tr> inside
		// <table> and so on).
		context := parent
		if context.Type != html.ElementNode {
			context = nil
		}
		nodes, err := html.ParseFragment(strings.NewReader(op.NodeData), context)
		if err != nil {
			return fmt.Errorf("failed to parse node data: %w", err)
		}
		for i, n := range nodes {
			insertChildAt(parent, n, op.Position+i)
		}

	case OpDeleteNode:
		node, err := GetNode(root, op.Path)
		if err != nil {
			return err
		}
		if node.Parent == nil {
			return errors.New("cannot delete the document root")
		}
		node.Parent.RemoveChild(node)

	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
	return nil
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func insertChildAt(parent, child *html.Node, index int) {
	if ref := getChildAtIndex(parent, index); ref != nil {
		parent.InsertBefore(child, ref)
		return
	}
	parent.AppendChild(child)
}
