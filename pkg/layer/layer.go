// Package layer computes per-node annotations over a finished regulation tree.
//
// A Layer never mutates the tree. The Runner walks the tree in pre-order and
// records each layer's annotations under the node's label key.
package layer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/coolbeans/regparser/pkg/tree"
)

// Annotation marks text found within a node.
type Annotation struct {
	Text      string `json:"text"`
	Locations []int  `json:"locations"`
}

// Layer computes annotations for one node. A nil result contributes nothing.
type Layer interface {
	Name() string
	Process(node *tree.Node) ([]Annotation, error)
}

// NodeAnnotations maps label keys to the annotations one layer produced.
type NodeAnnotations map[string][]Annotation

// NodeError records a layer failure on a single node.
type NodeError struct {
	Layer string
	Label string
	Err   error
}

func (e NodeError) Error() string {
	return fmt.Sprintf("layer %s on %s: %v", e.Layer, e.Label, e.Err)
}

func (e NodeError) Unwrap() error {
	return e.Err
}

// MarshalJSON includes the error message under "error".
func (e NodeError) MarshalJSON() ([]byte, error) {
	message := ""
	if e.Err != nil {
		message = e.Err.Error()
	}
	return json.Marshal(struct {
		Layer string `json:"layer"`
		Label string `json:"label"`
		Error string `json:"error"`
	}{e.Layer, e.Label, message})
}

// Keyed is one layer's annotations for a node.
type Keyed struct {
	Layer       string
	Annotations []Annotation
}

// Result holds the output of every registered layer.
type Result struct {
	Order  []string                   `json:"order"`
	Layers map[string]NodeAnnotations `json:"layers"`
	Errors []NodeError                `json:"-"`
}

// ForNode returns the annotations recorded for key, in layer registration
// order. Layers with nothing for the node are omitted.
func (r *Result) ForNode(key string) []Keyed {
	var out []Keyed
	for _, name := range r.Order {
		if annotations, ok := r.Layers[name][key]; ok {
			out = append(out, Keyed{Layer: name, Annotations: annotations})
		}
	}
	return out
}

// Runner applies registered layers to a tree.
type Runner struct {
	layers []Layer
	logger *slog.Logger
}

// NewRunner creates a Runner. A nil logger uses slog.Default().
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Register adds a layer. Names must be unique.
func (r *Runner) Register(l Layer) error {
	if l == nil {
		return fmt.Errorf("layer cannot be nil")
	}
	for _, existing := range r.layers {
		if existing.Name() == l.Name() {
			return fmt.Errorf("layer %q already registered", l.Name())
		}
	}
	r.layers = append(r.layers, l)
	return nil
}

// Names returns the registered layer names in registration order.
func (r *Runner) Names() []string {
	names := make([]string, len(r.layers))
	for i, l := range r.layers {
		names[i] = l.Name()
	}
	return names
}

// Run walks root in pre-order and invokes every layer on every node. A
// failure on one node is recorded and logged; the walk continues and the node
// gets no annotation from that layer.
func (r *Runner) Run(root *tree.Node) *Result {
	result := &Result{
		Order:  r.Names(),
		Layers: make(map[string]NodeAnnotations, len(r.layers)),
	}
	for _, l := range r.layers {
		result.Layers[l.Name()] = make(NodeAnnotations)
	}

	tree.Walk(root, func(n *tree.Node) bool {
		key := n.Label.Key()
		for _, l := range r.layers {
			annotations, err := l.Process(n)
			if err == nil {
				err = validateAnnotations(annotations)
			}
			if err != nil {
				nodeErr := NodeError{Layer: l.Name(), Label: key, Err: err}
				result.Errors = append(result.Errors, nodeErr)
				r.logger.Warn("layer failed on node", "layer", l.Name(), "label", key, "error", err)
				continue
			}
			if len(annotations) > 0 {
				result.Layers[l.Name()][key] = annotations
			}
		}
		return true
	})

	return result
}

// validateAnnotations checks that locations are non-negative, ascending and
// free of duplicates.
func validateAnnotations(annotations []Annotation) error {
	for _, a := range annotations {
		if !sort.IntsAreSorted(a.Locations) {
			return fmt.Errorf("annotation %q: locations not ascending", a.Text)
		}
		for i, loc := range a.Locations {
			if loc < 0 {
				return fmt.Errorf("annotation %q: negative location %d", a.Text, loc)
			}
			if i > 0 && a.Locations[i-1] == loc {
				return fmt.Errorf("annotation %q: duplicate location %d", a.Text, loc)
			}
		}
	}
	return nil
}
