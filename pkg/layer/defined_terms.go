package layer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/coolbeans/regparser/pkg/tree"
)

// DefinedTermsName is the key the defined-terms layer is stored under.
const DefinedTermsName = "defined-terms"

// DefinedTerms finds terms a node defines ("'Account' means", "The term
// account means"). Locations are offsets of the term within the node text
// with leading whitespace removed, matching ParagraphMarkers.
type DefinedTerms struct {
	patterns []*regexp.Regexp
}

// NewDefinedTerms returns the defined-terms layer.
func NewDefinedTerms() *DefinedTerms {
	return &DefinedTerms{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`['"\x{2018}\x{201C}]([^'"\x{2019}\x{201D}]{1,80})['"\x{2019}\x{201D}]\s+means\b`),
			regexp.MustCompile(`\b[Tt]he\s+term\s+([A-Za-z][A-Za-z\s-]{0,60}?)\s+means\b`),
		},
	}
}

// Name implements Layer.
func (d *DefinedTerms) Name() string {
	return DefinedTermsName
}

// Process implements Layer.
func (d *DefinedTerms) Process(node *tree.Node) ([]Annotation, error) {
	if node.Label.IsEmpty() {
		return nil, ErrMalformedLabel
	}
	text := strings.TrimLeftFunc(node.Text, unicode.IsSpace)

	byTerm := make(map[string][]int)
	var order []string
	for _, pattern := range d.patterns {
		for _, match := range pattern.FindAllStringSubmatchIndex(text, -1) {
			term := strings.TrimSpace(text[match[2]:match[3]])
			if term == "" {
				continue
			}
			if _, ok := byTerm[term]; !ok {
				order = append(order, term)
			}
			byTerm[term] = appendLocation(byTerm[term], match[2])
		}
	}

	var annotations []Annotation
	for _, term := range order {
		annotations = append(annotations, Annotation{Text: term, Locations: byTerm[term]})
	}
	return annotations, nil
}

// appendLocation inserts loc keeping the slice ascending and unique.
func appendLocation(locations []int, loc int) []int {
	for i, existing := range locations {
		if existing == loc {
			return locations
		}
		if existing > loc {
			locations = append(locations, 0)
			copy(locations[i+1:], locations[i:])
			locations[i] = loc
			return locations
		}
	}
	return append(locations, loc)
}
