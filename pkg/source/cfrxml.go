package source

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Elements that carry front matter or navigation rather than regulation text.
var skippedCFRElements = map[string]bool{
	"AUTH":     true,
	"SOURCE":   true,
	"CONTENTS": true,
	"EDNOTE":   true,
	"CITA":     true,
	"EAR":      true,
	"SECAUTH":  true,
	"FTNT":     true,
	"SECTNO":   true,
	"SUBJECT":  true,
	"PRTPAGE":  true,
}

var partHeading = regexp.MustCompile(`^PART\s+(\d+)`)

// CFRXMLToText converts govinfo CFR XML to plain regulation text. Each
// SECTION becomes a "§ N.M Subject" header line followed by one line per
// paragraph; headings inside appendices (such as Supplement I) are kept as
// lines. When part is non-empty only the matching PART is rendered.
func CFRXMLToText(r io.Reader, part string) (string, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse CFR XML: %w", err)
	}

	parts := xmlquery.Find(doc, "//PART")
	if len(parts) == 0 {
		var w lineWriter
		renderCFR(&w, doc)
		return w.String(), nil
	}

	var w lineWriter
	matched := false
	for _, p := range parts {
		if part != "" && cfrPartNumber(p) != part {
			continue
		}
		matched = true
		renderCFR(&w, p)
	}
	if !matched {
		return "", fmt.Errorf("part %s not found in CFR XML", part)
	}

	return w.String(), nil
}

func cfrPartNumber(part *xmlquery.Node) string {
	hd := part.SelectElement("HD")
	if hd == nil {
		return ""
	}
	m := partHeading.FindStringSubmatch(cleanXMLText(hd.InnerText()))
	if m == nil {
		return ""
	}
	return m[1]
}

func renderCFR(w *lineWriter, n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode || skippedCFRElements[c.Data] {
			continue
		}

		switch c.Data {
		case "HD", "P", "FP":
			w.line(cleanXMLText(c.InnerText()))

		case "SECTION":
			w.line(sectionHeader(c))
			renderCFR(w, c)

		default:
			renderCFR(w, c)
		}
	}
}

func sectionHeader(section *xmlquery.Node) string {
	var fields []string
	if sectNo := section.SelectElement("SECTNO"); sectNo != nil {
		no := cleanXMLText(sectNo.InnerText())
		if no != "" && !strings.HasPrefix(no, "§") {
			no = "§ " + no
		}
		fields = append(fields, no)
	}
	if subject := section.SelectElement("SUBJECT"); subject != nil {
		fields = append(fields, cleanXMLText(subject.InnerText()))
	}
	return strings.TrimSpace(strings.Join(fields, " "))
}

// cleanXMLText trims and collapses whitespace, including non-breaking
// spaces, to single spaces.
func cleanXMLText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
