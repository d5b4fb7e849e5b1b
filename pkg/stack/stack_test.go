package stack

import (
	"errors"
	"testing"

	"github.com/coolbeans/regparser/pkg/label"
	"github.com/coolbeans/regparser/pkg/tree"
)

func TestNewStackHasRootFrame(t *testing.T) {
	s := New()
	if s.Size() != 1 {
		t.Errorf("Size() = %d, want 1", s.Size())
	}
	if len(s.Peek()) != 0 {
		t.Errorf("root frame should be empty, got %d entries", len(s.Peek()))
	}
}

func TestSizeTracking(t *testing.T) {
	s := New()
	s.Push(nil)
	s.Push(nil)
	s.PushLast(Entry{Marker: "(a)", Node: tree.NewNode("(a)", "a")})

	if s.Size() != 3 {
		t.Errorf("Size() = %d, want 3", s.Size())
	}
}

func TestBalancedPushPop(t *testing.T) {
	s := New()
	start := s.Size()
	for i := 0; i < 4; i++ {
		s.Push(Frame{})
	}
	for i := 0; i < 4; i++ {
		if _, err := s.Pop(); err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
	}
	if s.Size() != start {
		t.Errorf("Size() = %d, want %d", s.Size(), start)
	}
}

func TestPopRootFrame(t *testing.T) {
	s := New()
	if _, err := s.Pop(); !errors.Is(err, ErrEmptyStack) {
		t.Errorf("Pop() error = %v, want ErrEmptyStack", err)
	}
	if s.Size() != 1 {
		t.Errorf("Size() = %d after failed Pop, want 1", s.Size())
	}
}

func TestPeekLastEmptyFrame(t *testing.T) {
	s := New()
	if _, err := s.PeekLast(); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("PeekLast() error = %v, want ErrEmptyFrame", err)
	}
}

func TestPushSeededFrame(t *testing.T) {
	s := New()
	seed := Frame{{Marker: "(a)", Node: tree.NewNode("", "a")}}
	s.Push(seed)
	seed[0].Marker = "changed"

	last, err := s.PeekLast()
	if err != nil {
		t.Fatalf("PeekLast() error = %v", err)
	}
	if last.Marker != "(a)" {
		t.Errorf("Push() should copy the seed frame, marker = %q", last.Marker)
	}
}

func TestUnwindRoundTrip(t *testing.T) {
	s := New()
	nodeA := tree.NewNode("(a) Account", "1005", "2", "a")
	nodeA1 := tree.NewNode("(1) Includes", "1")

	s.Push(nil)
	s.PushLast(Entry{Marker: "a", Node: nodeA})
	s.Push(nil)
	s.PushLast(Entry{Marker: "1", Node: nodeA1})

	if err := s.Unwind(); err != nil {
		t.Fatalf("Unwind() error = %v", err)
	}

	if len(nodeA.Children) != 1 || nodeA.Children[0] != nodeA1 {
		t.Fatalf("nodeA.Children = %v, want [nodeA1]", nodeA.Children)
	}
	want := nodeA.Label.Extend("1")
	if !nodeA1.Label.Equal(want) {
		t.Errorf("nodeA1.Label = %v, want %v", nodeA1.Label.Parts, want.Parts)
	}
	if s.Size() != 2 {
		t.Errorf("Size() = %d after Unwind, want 2", s.Size())
	}
}

func TestUnwindPrefixesDescendants(t *testing.T) {
	s := New()
	root := tree.NewNode("", "1005")
	section := tree.NewNode("", "2")
	para := tree.NewNode("(a)", "a")
	sub := tree.NewNode("(1)", "1")

	s.PushLast(Entry{Node: root})
	s.Push(Frame{{Node: section}})
	s.Push(Frame{{Marker: "(a)", Node: para}})
	s.Push(Frame{{Marker: "(1)", Node: sub}})

	for s.Size() > 1 {
		if err := s.Unwind(); err != nil {
			t.Fatalf("Unwind() error = %v", err)
		}
	}

	tests := []struct {
		node *tree.Node
		want label.Label
	}{
		{section, label.New("1005", "2")},
		{para, label.New("1005", "2", "a")},
		{sub, label.New("1005", "2", "a", "1")},
	}
	for _, tt := range tests {
		if !tt.node.Label.Equal(tt.want) {
			t.Errorf("label = %v, want %v", tt.node.Label.Parts, tt.want.Parts)
		}
	}
}

func TestUnwindPreservesInsertionOrder(t *testing.T) {
	s := New()
	parent := tree.NewNode("", "1005", "2")
	s.PushLast(Entry{Node: parent})
	s.Push(nil)

	order := []string{"c", "a", "b"}
	for _, id := range order {
		s.PushLast(Entry{Marker: "(" + id + ")", Node: tree.NewNode("", id)})
	}
	if err := s.Unwind(); err != nil {
		t.Fatalf("Unwind() error = %v", err)
	}

	for i, child := range parent.Children {
		want := label.New("1005", "2", order[i])
		if !child.Label.Equal(want) {
			t.Errorf("child %d label = %v, want %v", i, child.Label.Parts, want.Parts)
		}
	}
}

func TestUnwindEmptyChildFrame(t *testing.T) {
	s := New()
	parent := tree.NewNode("", "1005")
	parent.Children = nil
	s.PushLast(Entry{Node: parent})
	s.Push(nil)

	if err := s.Unwind(); err != nil {
		t.Fatalf("Unwind() error = %v", err)
	}
	if parent.Children == nil || len(parent.Children) != 0 {
		t.Errorf("Children = %v, want empty non-nil slice", parent.Children)
	}
}

func TestUnwindErrors(t *testing.T) {
	t.Run("root only", func(t *testing.T) {
		s := New()
		if err := s.Unwind(); !errors.Is(err, ErrEmptyStack) {
			t.Errorf("Unwind() error = %v, want ErrEmptyStack", err)
		}
	})

	t.Run("no parent entry", func(t *testing.T) {
		s := New()
		s.Push(nil)
		s.PushLast(Entry{Node: tree.NewNode("", "a")})
		if err := s.Unwind(); !errors.Is(err, ErrEmptyFrame) {
			t.Errorf("Unwind() error = %v, want ErrEmptyFrame", err)
		}
		if s.Size() != 2 {
			t.Errorf("Size() = %d, failed Unwind must not pop", s.Size())
		}
	})
}
