package tree

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/coolbeans/regparser/pkg/label"
)

func sampleTree() *Node {
	root := NewNode("", "1005")
	section := NewNode("§ 1005.2 Definitions.", "1005", "2")
	a := NewNode("(a) Account means...", "1005", "2", "a")
	a1 := NewNode("(1) Includes...", "1005", "2", "a", "1")
	b := NewNode("(b) Business day...", "1005", "2", "b")

	a.Children = []*Node{a1}
	section.Children = []*Node{a, b}
	root.Children = []*Node{section}
	return root
}

func TestWalkPreOrder(t *testing.T) {
	got := Labels(sampleTree())
	want := []string{"1005", "1005-2", "1005-2-a", "1005-2-a-1", "1005-2-b"}

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Labels() = %v, want %v", got, want)
	}
}

func TestWalkSkipChildren(t *testing.T) {
	var visited []string
	Walk(sampleTree(), func(n *Node) bool {
		visited = append(visited, n.Label.Key())
		return n.Label.Last() != "a"
	})
	for _, key := range visited {
		if key == "1005-2-a-1" {
			t.Error("Walk() visited child of skipped node")
		}
	}
	if len(visited) != 4 {
		t.Errorf("visited %d nodes, want 4", len(visited))
	}
}

func TestCountAndFind(t *testing.T) {
	root := sampleTree()
	if got := Count(root); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}

	n := Find(root, label.New("1005", "2", "a", "1"))
	if n == nil || n.Text != "(1) Includes..." {
		t.Errorf("Find() = %+v", n)
	}
	if Find(root, label.New("1005", "9")) != nil {
		t.Error("Find() missing label should return nil")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(sampleTree()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	t.Run("bad prefix", func(t *testing.T) {
		root := sampleTree()
		root.Children[0].Children[0].Label = label.New("1005", "3", "a")
		if err := Validate(root); err == nil {
			t.Error("Validate() expected prefix error")
		}
	})

	t.Run("duplicate sibling", func(t *testing.T) {
		root := sampleTree()
		root.Children[0].Children[1].Label = label.New("1005", "2", "a")
		if err := Validate(root); err == nil {
			t.Error("Validate() expected duplicate error")
		}
	})

	t.Run("nil children", func(t *testing.T) {
		root := sampleTree()
		root.Children[0].Children[1].Children = nil
		if err := Validate(root); err == nil {
			t.Error("Validate() expected nil children error")
		}
	})
}

func TestNodeJSON(t *testing.T) {
	data, err := json.Marshal(NewNode("(a) text", "1005", "2", "a"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"label":["1005","2","a"]`) {
		t.Errorf("JSON = %s, missing label array", got)
	}
	if !strings.Contains(got, `"children":[]`) {
		t.Errorf("JSON = %s, children should be an empty array", got)
	}
}
