// Package citation finds citations in regulation text: references to other
// paragraphs of the same title ("§ 1005.2(a)(1)", "paragraph (b) of this
// section") and to outside sources ("12 CFR 1026.4", "15 U.S.C. 1693").
package citation

import (
	"fmt"
	"strings"
)

// Kind classifies a citation.
type Kind string

const (
	// KindSection is a "§ part.section" reference.
	KindSection Kind = "section"
	// KindParagraph is a "paragraph (x) of this section" reference,
	// relative to the section containing it.
	KindParagraph Kind = "paragraph"
	KindCFR       Kind = "cfr"
	KindUSC       Kind = "usc"
	KindPublicLaw Kind = "public_law"
)

// Citation is one reference found in text.
type Citation struct {
	// Raw text as found in the source.
	RawText string `json:"raw_text"`
	Kind    Kind   `json:"kind"`

	// Title is the CFR or U.S.C. title, or the Congress of a public law.
	Title string `json:"title,omitempty"`
	// Part and Section locate a CFR or "§" citation; Section alone holds a
	// U.S.C. section or public law number.
	Part    string `json:"part,omitempty"`
	Section string `json:"section,omitempty"`
	// Markers are the paragraph markers without parentheses: "(a)(1)"
	// gives ["a", "1"].
	Markers []string `json:"markers,omitempty"`

	// Byte offset and length in the searched text.
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// Internal reports whether c refers into a regulation tree rather than to
// an outside source.
func (c *Citation) Internal() bool {
	return c.Kind == KindSection || c.Kind == KindParagraph
}

// LabelParts returns the label parts an internal citation points at. A
// paragraph citation is resolved against the part and section of the
// citing node; ok is false when that context is missing.
func (c *Citation) LabelParts(part, section string) (parts []string, ok bool) {
	switch c.Kind {
	case KindSection:
		return append([]string{c.Part, c.Section}, c.Markers...), true
	case KindParagraph:
		if part == "" || section == "" {
			return nil, false
		}
		return append([]string{part, section}, c.Markers...), true
	}
	return nil, false
}

// Normalize returns the canonical form of an external citation, or the raw
// text for internal ones.
func (c *Citation) Normalize() string {
	switch c.Kind {
	case KindCFR:
		ref := c.Part
		if c.Section != "" {
			ref += "." + c.Section
		}
		return fmt.Sprintf("%s CFR %s%s", c.Title, ref, markerSuffix(c.Markers))
	case KindUSC:
		return fmt.Sprintf("%s U.S.C. %s%s", c.Title, c.Section, markerSuffix(c.Markers))
	case KindPublicLaw:
		return fmt.Sprintf("Pub. L. %s-%s", c.Title, c.Section)
	default:
		return c.RawText
	}
}

func markerSuffix(markers []string) string {
	if len(markers) == 0 {
		return ""
	}
	return "(" + strings.Join(markers, ")(") + ")"
}
