package stack

import (
	"errors"
	"fmt"

	"github.com/coolbeans/regparser/pkg/token"
	"github.com/coolbeans/regparser/pkg/tree"
)

var (
	// ErrDuplicateLabel is returned when a frame already holds a sibling with
	// the same local identifier.
	ErrDuplicateLabel = errors.New("stack: duplicate sibling label")

	// ErrNoRoot is returned by Finish when the root frame is empty.
	ErrNoRoot = errors.New("stack: no root node")

	// ErrMultipleRoots is returned by Finish when the root frame holds more
	// than one node.
	ErrMultipleRoots = errors.New("stack: more than one root node")

	// ErrFinished is returned for events after Finish.
	ErrFinished = errors.New("stack: assembly already finished")
)

// Op names the depth signal that failed.
type Op string

const (
	OpDescend Op = "descend"
	OpLeaf    Op = "leaf"
	OpAscend  Op = "ascend"
	OpFinish  Op = "finish"
)

// AssemblyError reports a structural failure together with the source range
// of the record or signal that caused it.
type AssemblyError struct {
	Op    Op
	Label string
	Start int
	End   int
	Err   error
}

func (e *AssemblyError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s %s at [%d, %d): %v", e.Op, e.Label, e.Start, e.End, e.Err)
	}
	return fmt.Sprintf("%s at [%d, %d): %v", e.Op, e.Start, e.End, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// Assembler turns DESCEND, leaf and ASCEND signals into a tree. Leaves carry
// labels relative to their parent; the root leaf carries its absolute label.
type Assembler struct {
	stack    *NodeStack
	last     token.Span
	finished bool
}

// NewAssembler returns an assembler over a fresh stack.
func NewAssembler() *Assembler {
	return &Assembler{stack: New()}
}

// Depth returns the current stack size.
func (a *Assembler) Depth() int {
	return a.stack.Size()
}

// Descend opens a frame for the children of the most recent leaf.
func (a *Assembler) Descend(pos token.Span) error {
	if a.finished {
		return a.fail(OpDescend, "", pos, ErrFinished)
	}
	if _, err := a.stack.PeekLast(); err != nil {
		return a.fail(OpDescend, "", pos, err)
	}
	a.stack.Push(nil)
	a.last = pos
	return nil
}

// Leaf adds node to the current frame. marker is the literal text the node
// was introduced with and may be empty.
func (a *Assembler) Leaf(marker string, node *tree.Node, pos token.Span) error {
	if a.finished {
		return a.fail(OpLeaf, node.Label.Key(), pos, ErrFinished)
	}
	local := node.Label.Last()
	for _, sibling := range a.stack.Peek() {
		if sibling.Node.Label.Last() == local {
			return a.fail(OpLeaf, node.Label.Key(), pos, ErrDuplicateLabel)
		}
	}
	if node.Children == nil {
		node.Children = []*tree.Node{}
	}
	node.Source = pos
	a.stack.PushLast(Entry{Marker: marker, Node: node})
	a.last = pos
	return nil
}

// Ascend closes the current frame and attaches it to its parent.
func (a *Assembler) Ascend(pos token.Span) error {
	if a.finished {
		return a.fail(OpAscend, "", pos, ErrFinished)
	}
	if err := a.stack.Unwind(); err != nil {
		return a.fail(OpAscend, "", pos, err)
	}
	a.last = pos
	return nil
}

// MoveTo ascends until the stack is at most depth frames deep, then descends
// once if it is one frame short. It fails when depth would require opening
// more than one frame.
func (a *Assembler) MoveTo(depth int, pos token.Span) error {
	for a.stack.Size() > depth {
		if err := a.Ascend(pos); err != nil {
			return err
		}
	}
	if a.stack.Size() == depth-1 {
		return a.Descend(pos)
	}
	if a.stack.Size() != depth {
		return a.fail(OpDescend, "", pos, fmt.Errorf("cannot open depth %d from depth %d", depth, a.stack.Size()))
	}
	return nil
}

// Finish unwinds every open frame and returns the single root node.
func (a *Assembler) Finish() (*tree.Node, error) {
	if a.finished {
		return nil, a.fail(OpFinish, "", a.last, ErrFinished)
	}
	for a.stack.Size() > 1 {
		if err := a.stack.Unwind(); err != nil {
			return nil, a.fail(OpFinish, "", a.last, err)
		}
	}
	root := a.stack.Peek()
	switch {
	case len(root) == 0:
		return nil, a.fail(OpFinish, "", a.last, ErrNoRoot)
	case len(root) > 1:
		return nil, a.fail(OpFinish, root[1].Node.Label.Key(), root[1].Node.Source, ErrMultipleRoots)
	}
	a.finished = true
	return root[0].Node, nil
}

func (a *Assembler) fail(op Op, key string, pos token.Span, err error) error {
	return &AssemblyError{Op: op, Label: key, Start: pos.Start, End: pos.End, Err: err}
}
