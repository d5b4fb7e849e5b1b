package layer

import (
	"errors"
	"strings"
	"unicode"

	"github.com/coolbeans/regparser/pkg/label"
	"github.com/coolbeans/regparser/pkg/tree"
)

// ParagraphMarkersName is the key the paragraph-markers layer is stored under.
const ParagraphMarkersName = "paragraph-markers"

// ErrMalformedLabel is returned for a node whose label has no parts.
var ErrMalformedLabel = errors.New("layer: label has no parts")

// DeriveMarker returns the marker text expected at the start of a node with
// the given label parts: "1." inside interpretations, "(a)" elsewhere.
func DeriveMarker(parts []string) (string, error) {
	if len(parts) == 0 {
		return "", ErrMalformedLabel
	}
	l := label.Label{Parts: parts}
	if l.IsInterpretation() {
		return l.Last() + ".", nil
	}
	return "(" + l.Last() + ")", nil
}

// ParagraphMarkers reports the location of each node's leading marker. The
// location is relative to the node text with leading whitespace removed, so
// it is always 0 when present.
type ParagraphMarkers struct{}

// NewParagraphMarkers returns the paragraph-markers layer.
func NewParagraphMarkers() *ParagraphMarkers {
	return &ParagraphMarkers{}
}

// Name implements Layer.
func (p *ParagraphMarkers) Name() string {
	return ParagraphMarkersName
}

// Process implements Layer.
func (p *ParagraphMarkers) Process(node *tree.Node) ([]Annotation, error) {
	marker, err := DeriveMarker(node.Label.Parts)
	if err != nil {
		return nil, err
	}
	text := strings.TrimLeftFunc(node.Text, unicode.IsSpace)
	if !strings.HasPrefix(text, marker) {
		return nil, nil
	}
	return []Annotation{{Text: marker, Locations: []int{0}}}, nil
}
