// Package stack assembles a labeled tree from a linear scan of a regulation.
//
// Each frame of the NodeStack holds the siblings accumulated at one depth.
// Children are stored with labels relative to their parent; Unwind makes
// them absolute when it attaches them.
package stack

import (
	"errors"

	"github.com/coolbeans/regparser/pkg/tree"
)

var (
	// ErrEmptyStack is returned when popping or unwinding would remove the
	// root frame.
	ErrEmptyStack = errors.New("stack: only the root frame remains")

	// ErrEmptyFrame is returned when the last item of an empty frame is
	// requested.
	ErrEmptyFrame = errors.New("stack: frame is empty")
)

// Entry pairs the textual marker a node was introduced with and the node.
type Entry struct {
	Marker string
	Node   *tree.Node
}

// Frame is one level of the stack, in insertion order.
type Frame []Entry

// NodeStack is the marker/node stack. It always holds at least the root
// frame. A NodeStack belongs to a single assembly and is not safe for
// concurrent use.
type NodeStack struct {
	frames []Frame
}

// New returns a stack holding one empty root frame.
func New() *NodeStack {
	return &NodeStack{frames: []Frame{{}}}
}

// Size returns the current depth, always at least 1.
func (s *NodeStack) Size() int {
	return len(s.frames)
}

// Push appends a new top frame, optionally seeded with entries.
func (s *NodeStack) Push(frame Frame) {
	seeded := make(Frame, len(frame))
	copy(seeded, frame)
	s.frames = append(s.frames, seeded)
}

// PushLast appends an entry to the top frame.
func (s *NodeStack) PushLast(entry Entry) {
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], entry)
}

// Peek returns the top frame without removing it.
func (s *NodeStack) Peek() Frame {
	return s.frames[len(s.frames)-1]
}

// PeekLast returns the last entry of the top frame.
func (s *NodeStack) PeekLast() (Entry, error) {
	top := s.Peek()
	if len(top) == 0 {
		return Entry{}, ErrEmptyFrame
	}
	return top[len(top)-1], nil
}

// Pop removes and returns the top frame. The root frame is never popped.
func (s *NodeStack) Pop() (Frame, error) {
	if len(s.frames) < 2 {
		return nil, ErrEmptyStack
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, nil
}

// Unwind pops the top frame, prefixes each child's label with the label of
// the last entry in the frame beneath, and attaches the children to that
// entry's node in insertion order. Descendants attached by earlier unwinds
// receive the same prefix. The stack is unchanged on error.
func (s *NodeStack) Unwind() error {
	if len(s.frames) < 2 {
		return ErrEmptyStack
	}
	if len(s.frames[len(s.frames)-2]) == 0 {
		return ErrEmptyFrame
	}

	children, err := s.Pop()
	if err != nil {
		return err
	}
	parentEntry, err := s.PeekLast()
	if err != nil {
		return err
	}

	parent := parentEntry.Node
	attached := make([]*tree.Node, 0, len(children))
	for _, entry := range children {
		tree.Walk(entry.Node, func(n *tree.Node) bool {
			n.Label = n.Label.Prepend(parent.Label)
			return true
		})
		attached = append(attached, entry.Node)
	}
	parent.Children = attached
	return nil
}
