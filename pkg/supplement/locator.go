// Package supplement locates supplement headers ("Supplement I to Part 1005")
// so a part can be cut into its regulation text and its supplement.
package supplement

import (
	"fmt"
	"regexp"
	"strings"
)

// NotFound is returned by Locator.Find when no header exists.
const NotFound = -1

// DefaultID is the supplement holding official interpretations.
const DefaultID = "I"

// DefaultHeaderTemplate matches a supplement header at the start of a line.
// {id} is replaced by the quoted supplement identifier.
const DefaultHeaderTemplate = `(?m)^[ \t]*(Supplement\s+{id}\s+to\s+Part\b)`

var romanPattern = regexp.MustCompile(`^M{0,3}(CM|CD|D?C{0,3})(XC|XL|L?X{0,3})(IX|IV|V?I{0,3})$`)

// ValidID reports whether id is a non-empty Latin roman numeral.
func ValidID(id string) bool {
	return id != "" && romanPattern.MatchString(id)
}

// Locator finds the offset at which a supplement header begins.
type Locator interface {
	Find(text, id string) int
}

// HeaderLocator finds headers using a line-anchored regular expression.
type HeaderLocator struct {
	template string
}

// NewHeaderLocator creates a locator from a template containing {id}. The
// template's first capture group, when present, marks where the header
// begins.
func NewHeaderLocator(template string) (*HeaderLocator, error) {
	if template == "" {
		template = DefaultHeaderTemplate
	}
	if !strings.Contains(template, "{id}") {
		return nil, fmt.Errorf("supplement header template %q has no {id} placeholder", template)
	}
	if _, err := regexp.Compile(strings.ReplaceAll(template, "{id}", DefaultID)); err != nil {
		return nil, fmt.Errorf("compiling supplement header template: %w", err)
	}
	return &HeaderLocator{template: template}, nil
}

// Find returns the offset of the first header for id, or NotFound. An empty
// id means DefaultID; an id that is not a roman numeral is never found.
func (l *HeaderLocator) Find(text, id string) int {
	if id == "" {
		id = DefaultID
	}
	if !ValidID(id) {
		return NotFound
	}
	pattern, err := regexp.Compile(strings.ReplaceAll(l.template, "{id}", regexp.QuoteMeta(id)))
	if err != nil {
		return NotFound
	}
	match := pattern.FindStringSubmatchIndex(text)
	if match == nil {
		return NotFound
	}
	if len(match) >= 4 && match[2] >= 0 {
		return match[2]
	}
	return match[0]
}

// Split cuts text at the supplement header. When no header is found the
// whole text is the body and offset is NotFound.
func Split(locator Locator, text, id string) (body, supplement string, offset int) {
	offset = locator.Find(text, id)
	if offset == NotFound {
		return text, "", NotFound
	}
	return text[:offset], text[offset:], offset
}
