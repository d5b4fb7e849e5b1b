// Package source reads regulation documents and normalizes them to the plain
// line-oriented text the tree builder scans.
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies the on-disk representation of a regulation.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatXML      Format = "xml"
)

// Options tune how a document is read.
type Options struct {
	// Part selects one PART from a multi-part CFR XML file. Empty reads
	// every part.
	Part string
}

// Document is a normalized regulation text.
type Document struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Text   string `json:"-"`
}

// DetectFormat picks a format from the file extension. Unknown extensions
// are treated as plain text.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".xml":
		return FormatXML
	default:
		return FormatText
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatText, "txt", "":
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatXML:
		return FormatXML, nil
	}
	return "", fmt.Errorf("unknown source format %q", name)
}

// Load reads and normalizes the file at path.
func Load(path string, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	format := DetectFormat(path)
	text, err := Read(f, format, opts)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return &Document{Path: path, Format: format, Text: text}, nil
}

// Read normalizes r according to format.
func Read(r io.Reader, format Format, opts Options) (string, error) {
	switch format {
	case FormatMarkdown:
		data, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		return MarkdownToText(data), nil
	case FormatXML:
		return CFRXMLToText(r, opts.Part)
	case FormatText, "":
		data, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		return NormalizeText(data), nil
	}
	return "", fmt.Errorf("unknown source format %q", format)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NormalizeText strips a byte order mark and converts CRLF and CR line
// endings to LF.
func NormalizeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// lineWriter accumulates non-empty lines.
type lineWriter struct {
	builder strings.Builder
}

func (w *lineWriter) line(text string) {
	if text == "" {
		return
	}
	w.builder.WriteString(text)
	w.builder.WriteByte('\n')
}

func (w *lineWriter) String() string {
	return w.builder.String()
}
