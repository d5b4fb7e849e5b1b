// Package grammar recognizes paragraph markers at the start of regulation
// lines and infers the depth each marker belongs at.
package grammar

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/coolbeans/regparser/pkg/token"
)

// Marker is one recognized paragraph marker.
type Marker struct {
	Text  string `json:"text"`  // literal marker, e.g. "(a)" or "1."
	Value string `json:"value"` // label part, e.g. "a" or "1"
}

// lineLexer tokenizes a single line of regulation text.
var lineLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Parenthesized markers: (a), (12), (iv), (A), (aa)
	{Name: "Paren", Pattern: `\([A-Za-z0-9]{1,5}\)`},
	// Interpretation comment markers: 1., iv., A.
	{Name: "Dotted", Pattern: `(?:[0-9]{1,3}|[ivxlc]{1,6}|[A-Z])\.`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Word", Pattern: `[^\s()]+`},
	{Name: "Char", Pattern: `[\s\S]`},
})

// parenLine is a line that may open with a run of adjacent parenthesized
// markers.
type parenLine struct {
	Indent  string         `@Whitespace?`
	Markers []*parenMarker `@@*`
	Rest    []string       `( @Whitespace | @Paren | @Dotted | @Word | @Char )*`
}

type parenMarker struct {
	Pos   lexer.Position
	Value string `@Paren`
}

// dottedLine is a line that may open with one comment marker.
type dottedLine struct {
	Indent string        `@Whitespace?`
	Marker *dottedMarker `@@?`
	Rest   []string      `( @Whitespace | @Paren | @Dotted | @Word | @Char )*`
}

type dottedMarker struct {
	Pos   lexer.Position
	Value string `@Dotted`
}

var (
	parenParser  = participle.MustBuild[parenLine](participle.Lexer(lineLexer))
	dottedParser = participle.MustBuild[dottedLine](participle.Lexer(lineLexer))
)

// ParseMarkers returns the run of adjacent parenthesized markers that opens
// source[start:end], with absolute source offsets. Leading spaces and tabs
// are skipped. A line without a leading marker yields no markers.
func ParseMarkers(source string, start, end int) ([]token.Wrapped[Marker], error) {
	line, err := slice(source, start, end)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	parsed, err := parenParser.ParseString("", line)
	if err != nil {
		return nil, fmt.Errorf("parsing markers at %d: %w", start, err)
	}

	markers := make([]token.Wrapped[Marker], 0, len(parsed.Markers))
	for _, m := range parsed.Markers {
		value := strings.TrimSuffix(strings.TrimPrefix(m.Value, "("), ")")
		wrapped, err := token.Wrap(source, start+m.Pos.Offset, m.Value, Marker{Text: m.Value, Value: value})
		if err != nil {
			return nil, err
		}
		markers = append(markers, wrapped)
	}
	return markers, nil
}

// ParseCommentMarker returns the comment marker ("1.", "ii.", "A.") that
// opens source[start:end], or nil. The marker must be followed by whitespace
// or the end of the line.
func ParseCommentMarker(source string, start, end int) (*token.Wrapped[Marker], error) {
	line, err := slice(source, start, end)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	parsed, err := dottedParser.ParseString("", line)
	if err != nil {
		return nil, fmt.Errorf("parsing comment marker at %d: %w", start, err)
	}
	if parsed.Marker == nil {
		return nil, nil
	}

	after := parsed.Marker.Pos.Offset + len(parsed.Marker.Value)
	if after < len(line) && line[after] != ' ' && line[after] != '\t' {
		return nil, nil
	}

	value := strings.TrimSuffix(parsed.Marker.Value, ".")
	wrapped, err := token.Wrap(source, start+parsed.Marker.Pos.Offset, parsed.Marker.Value, Marker{Text: parsed.Marker.Value, Value: value})
	if err != nil {
		return nil, err
	}
	return &wrapped, nil
}

func slice(source string, start, end int) (string, error) {
	if start < 0 || start > end || end > len(source) {
		return "", fmt.Errorf("invalid line range [%d, %d) for source of length %d", start, end, len(source))
	}
	return source[start:end], nil
}
