package source

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownToText flattens a Markdown regulation to one line per source line.
// Headings lose their '#' prefix, inline markup is dropped and ordered list
// items keep their number so interpretation comments such as "1." survive.
func MarkdownToText(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var w lineWriter
	renderBlocks(&w, doc, src)
	return w.String()
}

func renderBlocks(w *lineWriter, parent ast.Node, src []byte) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			for _, line := range strings.Split(inlineText(node, src), "\n") {
				w.line(strings.TrimSpace(line))
			}

		case *ast.List:
			index := node.Start
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				var sub lineWriter
				renderBlocks(&sub, item, src)
				body := sub.String()
				if node.IsOrdered() && body != "" {
					body = fmt.Sprintf("%d%c %s", index, node.Marker, body)
				}
				for _, line := range strings.Split(strings.TrimSuffix(body, "\n"), "\n") {
					w.line(line)
				}
				index++
			}

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				w.line(strings.TrimRight(string(segment.Value(src)), "\r\n"))
			}

		case *ast.ThematicBreak, *ast.HTMLBlock:
			continue

		default:
			renderBlocks(w, n, src)
		}
	}
}

// inlineText concatenates the text of a block's inline children. Soft and
// hard line breaks become newlines.
func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	writeInline(&buf, n, src)
	return buf.String()
}

func writeInline(buf *strings.Builder, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch inline := c.(type) {
		case *ast.Text:
			buf.Write(inline.Segment.Value(src))
			if inline.HardLineBreak() || inline.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(inline.Value)
		case *ast.AutoLink:
			buf.Write(inline.Label(src))
		case *ast.RawHTML:
			continue
		default:
			writeInline(buf, c, src)
		}
	}
}
