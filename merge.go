package vcursor

import (
	"fmt"
	"strconv"
)

const mergeAuthor = "merge"

// Merge combines two deltas made concurrently against baseHTML. The result
// applies deltaA first and deltaB, transformed, after it. When the deltas
// conflict no merge is attempted and the conflicts are returned.
func Merge(baseHTML string, deltaA, deltaB *Delta) (string, *Delta, []Conflict, error) {
	merged, conflicts, err := mergeDeltas(HashHTML(baseHTML), deltaA, deltaB)
	if err != nil || len(conflicts) > 0 {
		return "", nil, conflicts, err
	}
	patched, err := Patch(baseHTML, merged)
	if err != nil {
		return "", nil, nil, err
	}
	return patched, merged, nil, nil
}

// MergeAll folds deltas, all made against baseHTML, into one delta in
// order. It stops at the first conflicting pair.
func MergeAll(baseHTML string, deltas []*Delta) (string, *Delta, []Conflict, error) {
	baseHash := HashHTML(baseHTML)
	acc := &Delta{BaseHash: baseHash, Author: mergeAuthor}
	for i, d := range deltas {
		merged, conflicts, err := mergeDeltas(baseHash, acc, d)
		if err != nil {
			return "", nil, nil, fmt.Errorf("delta %d: %w", i, err)
		}
		if len(conflicts) > 0 {
			return "", nil, conflicts, nil
		}
		acc = merged
	}
	patched, err := Patch(baseHTML, acc)
	if err != nil {
		return "", nil, nil, err
	}
	return patched, acc, nil, nil
}

func mergeDeltas(baseHash string, deltaA, deltaB *Delta) (*Delta, []Conflict, error) {
	if deltaA == nil || deltaB == nil {
		return nil, nil, fmt.Errorf("nil delta")
	}
	if deltaA.BaseHash != baseHash || deltaB.BaseHash != baseHash {
		return nil, nil, ErrBaseHashMismatch
	}
	if conflicts := detectConflicts(deltaA.Operations, deltaB.Operations); len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	ops := make([]Operation, 0, len(deltaA.Operations)+len(deltaB.Operations))
	ops = append(ops, deltaA.Operations...)
	for _, opB := range deltaB.Operations {
		keep := true
		for _, opA := range deltaA.Operations {
			if opB, keep = transformOp(opB, opA); !keep {
				break
			}
		}
		if keep {
			ops = append(ops, opB)
		}
	}
	return &Delta{
		BaseHash:   baseHash,
		Operations: ops,
		Author:     mergeAuthor,
		Timestamp:  max(deltaA.Timestamp, deltaB.Timestamp),
	}, nil, nil
}

func detectConflicts(opsA, opsB []Operation) []Conflict {
	var conflicts []Conflict
	for _, opB := range opsB {
		for _, opA := range opsA {
			if pathKey(opA) == pathKey(opB) && isConflict(opA, opB) {
				conflicts = append(conflicts, Conflict{
					Type:        "Direct",
					Description: fmt.Sprintf("Conflict on node %v: %s vs %s", opB.Path, opA.Type, opB.Type),
					Path:        opB.Path,
					Ops:         []Operation{opA, opB},
				})
			}
			// An edit below a node the other side deleted.
			if opA.Type == OpDeleteNode && touchesSubtree(opA.Path, opB) {
				conflicts = append(conflicts, Conflict{
					Type:        "Structure",
					Description: "Modification of deleted node",
					Path:        opB.Path,
					Ops:         []Operation{opA, opB},
				})
			}
			if opB.Type == OpDeleteNode && touchesSubtree(opB.Path, opA) {
				conflicts = append(conflicts, Conflict{
					Type:        "Structure",
					Description: "Modification of deleted node",
					Path:        opA.Path,
					Ops:         []Operation{opA, opB},
				})
			}
		}
	}
	return conflicts
}

// isConflict decides whether two operations on the same target can both
// be applied.
func isConflict(a, b Operation) bool {
	if a.Type == OpDeleteNode || b.Type == OpDeleteNode {
		return a.Type != b.Type
	}
	switch {
	case a.Type == OpUpdateText && b.Type == OpUpdateText:
		return a.NewValue != b.NewValue
	case a.Type == OpUpdateText || b.Type == OpUpdateText:
		// A whole-text replacement cannot be reconciled with a partial edit.
		return isTextOp(a) || isTextOp(b)
	case isAttrOp(a) && isAttrOp(b):
		if a.Key != b.Key {
			return false
		}
		if a.Type == OpRemoveAttr && b.Type == OpRemoveAttr {
			return false
		}
		return a.Type != b.Type || a.NewValue != b.NewValue
	case a.Type == OpDeleteText && b.Type == OpDeleteText:
		return a.Position < textEnd(b) && b.Position < textEnd(a)
	case a.Type == OpInsertText && b.Type == OpDeleteText:
		return a.Position > b.Position && a.Position < textEnd(b)
	case a.Type == OpDeleteText && b.Type == OpInsertText:
		return b.Position > a.Position && b.Position < textEnd(a)
	}
	return false
}

func isTextOp(op Operation) bool {
	return op.Type == OpUpdateText || op.Type == OpInsertText || op.Type == OpDeleteText
}

func isAttrOp(op Operation) bool {
	return op.Type == OpUpdateAttr || op.Type == OpRemoveAttr
}

// textEnd is the end of the rune range a DeleteText removes.
func textEnd(op Operation) int {
	return op.Position + runeLen(op.OldValue)
}

// pathKey identifies the target of op. An insert targets a slot of its
// parent rather than a node.
func pathKey(op Operation) string {
	s := op.Path.String()
	if op.Type == OpInsertNode {
		return s + ":I:" + strconv.Itoa(op.Position)
	}
	return s
}

// touchesSubtree reports whether op edits below root, including inserting
// directly into it.
func touchesSubtree(root NodePath, op Operation) bool {
	if op.Type == OpInsertNode && pathEqual(root, op.Path) {
		return true
	}
	return isDescendant(root, op.Path)
}

func isDescendant(ancestor, child NodePath) bool {
	if len(child) <= len(ancestor) {
		return false
	}
	for i := range ancestor {
		if child[i] != ancestor[i] {
			return false
		}
	}
	return true
}

// transformOp rewrites b, made against the same state as a, so that it
// applies after a. It reports false when b has become a no-op.
func transformOp(b, a Operation) (Operation, bool) {
	newB := b

	switch a.Type {
	case OpInsertNode:
		if b.Type == OpInsertNode && pathEqual(b.Path, a.Path) {
			if a.Position <= b.Position {
				newB.Position++
			}
		} else if isSiblingAffected(a.Path, a.Position, b.Path) {
			newB.Path = shiftPath(b.Path, len(a.Path), 1)
		}

	case OpDeleteNode:
		if b.Type == OpDeleteNode && pathEqual(a.Path, b.Path) {
			return b, false
		}
		parentPath := a.Path[:len(a.Path)-1]
		delIndex := a.Path[len(a.Path)-1]
		if b.Type == OpInsertNode && pathEqual(b.Path, parentPath) {
			if delIndex < b.Position {
				newB.Position--
			}
		} else if isSiblingAffected(parentPath, delIndex, b.Path) && b.Path[len(parentPath)] > delIndex {
			newB.Path = shiftPath(b.Path, len(parentPath), -1)
		}

	case OpInsertText:
		// Concurrent inserts at one position keep a's text first.
		if pathEqual(a.Path, b.Path) && (b.Type == OpInsertText || b.Type == OpDeleteText) && a.Position <= b.Position {
			newB.Position += runeLen(a.NewValue)
		}

	case OpDeleteText:
		if pathEqual(a.Path, b.Path) && (b.Type == OpInsertText || b.Type == OpDeleteText) && b.Position >= textEnd(a) {
			newB.Position -= runeLen(a.OldValue)
		}
	}
	return newB, true
}

func shiftPath(p NodePath, at, by int) NodePath {
	out := append(NodePath(nil), p...)
	out[at] += by
	return out
}

func pathEqual(a, b NodePath) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isSiblingAffected reports whether target passes through a child of
// parent at or after index.
func isSiblingAffected(parent NodePath, index int, target NodePath) bool {
	if len(target) <= len(parent) {
		return false
	}
	for i := range parent {
		if target[i] != parent[i] {
			return false
		}
	}
	return target[len(parent)] >= index
}
