package citation

import (
	"regexp"
	"sort"
)

// Parser extracts citations from text. It is safe for concurrent use.
type Parser struct {
	cfrPattern       *regexp.Regexp // 12 CFR 1026.4(b), 12 C.F.R. part 1005
	uscPattern       *regexp.Regexp // 15 U.S.C. 1693, 15 U.S.C. § 1693a(c)
	publicLawPattern *regexp.Regexp // Pub. L. 111-203, Public Law 90-321
	sectionPattern   *regexp.Regexp // § 1005.2(a)(1)
	paragraphPattern *regexp.Regexp // paragraph (b)(2) of this section

	markerPattern *regexp.Regexp
}

// NewParser creates a citation parser with compiled patterns.
func NewParser() *Parser {
	return &Parser{
		cfrPattern:       regexp.MustCompile(`(\d+)\s+C\.?F\.?R\.?\s+(?:[Pp]arts?\s+|§§?\s*)?(\d+)(?:\.(\d+[a-z]?))?((?:\([A-Za-z0-9]{1,5}\))*)`),
		uscPattern:       regexp.MustCompile(`(\d+)\s+U\.?S\.?C\.?\s+(?:§§?\s*|[Ss]ection\s+|[Ss]ec\.\s*)?(\d+[a-z]*)((?:\([A-Za-z0-9]{1,5}\))*)`),
		publicLawPattern: regexp.MustCompile(`(?:Public\s+Law|Pub\.\s*L\.|P\.\s*L\.)\s*(?:No\.\s*)?(\d+)[-–](\d+)`),
		sectionPattern:   regexp.MustCompile(`§§?\s*(\d+)\.(\d+[a-z]?)((?:\([A-Za-z0-9]{1,5}\))*)`),
		paragraphPattern: regexp.MustCompile(`\b[Pp]aragraphs?\s+((?:\([A-Za-z0-9]{1,5}\))+)\s+of\s+this\s+section\b`),
		markerPattern:    regexp.MustCompile(`\(([A-Za-z0-9]{1,5})\)`),
	}
}

// Parse returns every citation in text ordered by offset. Where patterns
// overlap the more specific one wins: "12 CFR § 1005.2" is one CFR
// citation, not a CFR citation and a section citation.
func (parser *Parser) Parse(text string) []*Citation {
	var claimed [][2]int
	var citations []*Citation

	for _, find := range []func(string) []*Citation{
		parser.parseCFR,
		parser.parseUSC,
		parser.parsePublicLaw,
		parser.parseSection,
		parser.parseParagraph,
	} {
		for _, c := range find(text) {
			if overlaps(claimed, c.Offset, c.Offset+c.Length) {
				continue
			}
			claimed = append(claimed, [2]int{c.Offset, c.Offset + c.Length})
			citations = append(citations, c)
		}
	}

	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].Offset < citations[j].Offset
	})
	return citations
}

func overlaps(claimed [][2]int, start, end int) bool {
	for _, span := range claimed {
		if start < span[1] && span[0] < end {
			return true
		}
	}
	return false
}

func (parser *Parser) parseCFR(text string) []*Citation {
	var citations []*Citation
	for _, m := range parser.cfrPattern.FindAllStringSubmatchIndex(text, -1) {
		c := newCitation(text, m, KindCFR)
		c.Title = text[m[2]:m[3]]
		c.Part = text[m[4]:m[5]]
		c.Section = group(text, m, 3)
		c.Markers = parser.markers(group(text, m, 4))
		citations = append(citations, c)
	}
	return citations
}

func (parser *Parser) parseUSC(text string) []*Citation {
	var citations []*Citation
	for _, m := range parser.uscPattern.FindAllStringSubmatchIndex(text, -1) {
		c := newCitation(text, m, KindUSC)
		c.Title = text[m[2]:m[3]]
		c.Section = text[m[4]:m[5]]
		c.Markers = parser.markers(group(text, m, 3))
		citations = append(citations, c)
	}
	return citations
}

func (parser *Parser) parsePublicLaw(text string) []*Citation {
	var citations []*Citation
	for _, m := range parser.publicLawPattern.FindAllStringSubmatchIndex(text, -1) {
		c := newCitation(text, m, KindPublicLaw)
		c.Title = text[m[2]:m[3]]
		c.Section = text[m[4]:m[5]]
		citations = append(citations, c)
	}
	return citations
}

func (parser *Parser) parseSection(text string) []*Citation {
	var citations []*Citation
	for _, m := range parser.sectionPattern.FindAllStringSubmatchIndex(text, -1) {
		c := newCitation(text, m, KindSection)
		c.Part = text[m[2]:m[3]]
		c.Section = text[m[4]:m[5]]
		c.Markers = parser.markers(group(text, m, 3))
		citations = append(citations, c)
	}
	return citations
}

func (parser *Parser) parseParagraph(text string) []*Citation {
	var citations []*Citation
	for _, m := range parser.paragraphPattern.FindAllStringSubmatchIndex(text, -1) {
		c := newCitation(text, m, KindParagraph)
		c.Markers = parser.markers(text[m[2]:m[3]])
		citations = append(citations, c)
	}
	return citations
}

func (parser *Parser) markers(chain string) []string {
	if chain == "" {
		return nil
	}
	var out []string
	for _, m := range parser.markerPattern.FindAllStringSubmatch(chain, -1) {
		out = append(out, m[1])
	}
	return out
}

func newCitation(text string, m []int, kind Kind) *Citation {
	return &Citation{
		RawText: text[m[0]:m[1]],
		Kind:    kind,
		Offset:  m[0],
		Length:  m[1] - m[0],
	}
}

// group returns submatch n, or "" when it did not participate.
func group(text string, m []int, n int) string {
	if m[2*n] < 0 {
		return ""
	}
	return text[m[2*n]:m[2*n+1]]
}
