package layer

import (
	"strings"
	"unicode"

	"github.com/coolbeans/regparser/pkg/citation"
	"github.com/coolbeans/regparser/pkg/label"
	"github.com/coolbeans/regparser/pkg/tree"
)

const (
	// InternalCitationsName is the key the internal-citations layer is
	// stored under.
	InternalCitationsName = "internal-citations"

	// ExternalCitationsName is the key the external-citations layer is
	// stored under.
	ExternalCitationsName = "external-citations"
)

// InternalCitations finds references to other regulation paragraphs. The
// annotation text is the label key of the cited node; "paragraph (b) of
// this section" resolves against the citing node's section.
type InternalCitations struct {
	parser *citation.Parser
}

// NewInternalCitations returns the internal-citations layer.
func NewInternalCitations() *InternalCitations {
	return &InternalCitations{parser: citation.NewParser()}
}

// Name implements Layer.
func (c *InternalCitations) Name() string {
	return InternalCitationsName
}

// Process implements Layer.
func (c *InternalCitations) Process(node *tree.Node) ([]Annotation, error) {
	if node.Label.IsEmpty() {
		return nil, ErrMalformedLabel
	}
	part, section := sectionContext(node.Label)

	return collect(c.parser.Parse(citationText(node)), func(cite *citation.Citation) (string, bool) {
		parts, ok := cite.LabelParts(part, section)
		if !ok {
			return "", false
		}
		return label.New(parts...).Key(), true
	}), nil
}

// ExternalCitations finds references to the CFR, the U.S. Code and public
// laws. The annotation text is the normalized citation.
type ExternalCitations struct {
	parser *citation.Parser
}

// NewExternalCitations returns the external-citations layer.
func NewExternalCitations() *ExternalCitations {
	return &ExternalCitations{parser: citation.NewParser()}
}

// Name implements Layer.
func (c *ExternalCitations) Name() string {
	return ExternalCitationsName
}

// Process implements Layer.
func (c *ExternalCitations) Process(node *tree.Node) ([]Annotation, error) {
	if node.Label.IsEmpty() {
		return nil, ErrMalformedLabel
	}
	return collect(c.parser.Parse(citationText(node)), func(cite *citation.Citation) (string, bool) {
		if cite.Internal() {
			return "", false
		}
		return cite.Normalize(), true
	}), nil
}

// citationText is the node text with leading whitespace removed, the same
// base DefinedTerms reports locations against.
func citationText(node *tree.Node) string {
	return strings.TrimLeftFunc(node.Text, unicode.IsSpace)
}

// sectionContext returns the part and section a regulation text node sits
// in. Interpretation nodes have no section context.
func sectionContext(l label.Label) (part, section string) {
	if l.IsInterpretation() || l.Len() < 2 {
		return "", ""
	}
	return l.Parts[0], l.Parts[1]
}

// collect groups citations by annotation text in first-seen order.
func collect(cites []*citation.Citation, key func(*citation.Citation) (string, bool)) []Annotation {
	byText := make(map[string][]int)
	var order []string
	for _, cite := range cites {
		text, ok := key(cite)
		if !ok {
			continue
		}
		if _, seen := byText[text]; !seen {
			order = append(order, text)
		}
		byText[text] = appendLocation(byText[text], cite.Offset)
	}

	var annotations []Annotation
	for _, text := range order {
		annotations = append(annotations, Annotation{Text: text, Locations: byText[text]})
	}
	return annotations
}
