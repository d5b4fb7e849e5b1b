// Package tree defines the labeled regulation tree produced by the assembler
// and consumed by layers.
package tree

import (
	"fmt"

	"github.com/coolbeans/regparser/pkg/label"
	"github.com/coolbeans/regparser/pkg/token"
)

// NodeType classifies where a node came from.
type NodeType string

const (
	NodeTypeRegText     NodeType = "regtext"
	NodeTypeInterp      NodeType = "interp"
	NodeTypeEmpty       NodeType = "empty"
	NodeTypeUnspecified NodeType = ""
)

// Node is one labeled unit of regulation text. Text holds only the node's own
// text, not its descendants'.
type Node struct {
	Label    label.Label `json:"label"`
	Text     string      `json:"text"`
	Title    string      `json:"title,omitempty"`
	NodeType NodeType    `json:"node_type,omitempty"`
	Source   token.Span  `json:"-"`
	Children []*Node     `json:"children"`
}

// NewNode creates a leaf node with an empty, non-nil child list.
func NewNode(text string, parts ...string) *Node {
	return &Node{
		Label:    label.New(parts...),
		Text:     text,
		Children: []*Node{},
	}
}

// WalkFunc is called for each node in pre-order. Returning false skips the
// node's children.
type WalkFunc func(n *Node) bool

// Walk visits n and its descendants in pre-order, parents before children
// and left siblings before right.
func Walk(n *Node, fn WalkFunc) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		Walk(child, fn)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func Count(n *Node) int {
	count := 0
	Walk(n, func(*Node) bool {
		count++
		return true
	})
	return count
}

// Find returns the node with the given absolute label, or nil.
func Find(root *Node, target label.Label) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Label.Equal(target) {
			found = n
			return false
		}
		return target.HasPrefix(n.Label)
	})
	return found
}

// Labels returns the label key of every node in pre-order.
func Labels(root *Node) []string {
	var keys []string
	Walk(root, func(n *Node) bool {
		keys = append(keys, n.Label.Key())
		return true
	})
	return keys
}

// Validate checks the structural invariants of a finished tree: every child
// label extends its parent's by exactly one part, siblings have distinct last
// parts and every node has a non-nil child list.
func Validate(root *Node) error {
	if root == nil {
		return fmt.Errorf("nil root")
	}
	var err error
	Walk(root, func(n *Node) bool {
		if err != nil {
			return false
		}
		if n.Children == nil {
			err = fmt.Errorf("node %s: children not set", n.Label)
			return false
		}
		seen := make(map[string]bool, len(n.Children))
		for _, child := range n.Children {
			if !child.Label.IsChildOf(n.Label) {
				err = fmt.Errorf("node %s: child label %s does not extend parent by one part", n.Label, child.Label)
				return false
			}
			last := child.Label.Last()
			if seen[last] {
				err = fmt.Errorf("node %s: duplicate child %q", n.Label, last)
				return false
			}
			seen[last] = true
		}
		return true
	})
	return err
}
