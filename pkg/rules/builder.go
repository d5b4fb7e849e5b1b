// Package rules scans the plain text of one CFR part and drives a
// stack.Assembler to build its labeled tree: the part root, § sections and
// their nested paragraphs, and the Interpretations subtree cut out by the
// supplement locator.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/coolbeans/regparser/pkg/grammar"
	"github.com/coolbeans/regparser/pkg/label"
	"github.com/coolbeans/regparser/pkg/profile"
	"github.com/coolbeans/regparser/pkg/stack"
	"github.com/coolbeans/regparser/pkg/supplement"
	"github.com/coolbeans/regparser/pkg/token"
	"github.com/coolbeans/regparser/pkg/tree"
)

// ErrNoPart is returned when no part number is configured and none can be
// read from a part or section header.
var ErrNoPart = errors.New("rules: part number not found")

// ErrHeaderOutOfOrder is returned when an interpretation paragraph header
// names a section whose interpretations were already closed by a later
// section heading.
var ErrHeaderOutOfOrder = errors.New("rules: interpretation header for an earlier section")

// Stack sizes at which each kind of node is placed.
const (
	sectionDepth       = 2
	paragraphDepth     = 3
	interpDepth        = 2
	interpSectionDepth = 3
	interpHeaderDepth  = 4
)

// Options configure a Builder.
type Options struct {
	// Part is the CFR part number. When empty it is read from the first part
	// header, or failing that the first section header.
	Part string

	// SupplementID overrides the profile's supplement id.
	SupplementID string

	// Locator overrides the profile's supplement header locator.
	Locator supplement.Locator
}

// Builder builds trees for documents that follow one profile. A Builder
// holds no per-document state and may be shared between goroutines.
type Builder struct {
	patterns     *profile.Compiled
	locator      supplement.Locator
	supplementID string
	part         string
	logger       *slog.Logger
}

// New returns a builder for p.
func New(p *profile.Profile, opts Options, logger *slog.Logger) (*Builder, error) {
	if p == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}
	patterns, err := p.Patterns()
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.ProfileID, err)
	}
	if patterns.SectionHeader == nil {
		return nil, fmt.Errorf("profile %q has no section header pattern", p.ProfileID)
	}

	id := opts.SupplementID
	if id == "" {
		id = p.Supplement()
	}
	if !supplement.ValidID(id) {
		return nil, fmt.Errorf("invalid supplement id %q", id)
	}

	var locator supplement.Locator = patterns.Locator
	if opts.Locator != nil {
		locator = opts.Locator
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		patterns:     patterns,
		locator:      locator,
		supplementID: id,
		part:         opts.Part,
		logger:       logger,
	}, nil
}

// Build parses source into a tree rooted at the part. Structural failures
// are returned as *stack.AssemblyError values naming the offending range.
func (b *Builder) Build(source string) (*tree.Node, error) {
	part := b.part
	if part == "" {
		part = b.detectPart(source)
	}
	if part == "" {
		return nil, ErrNoPart
	}

	offset := b.locator.Find(source, b.supplementID)

	s := &scan{
		builder: b,
		source:  source,
		asm:     stack.NewAssembler(),
		tracker: grammar.NewTracker(),
		logger:  b.logger.With("part", part),
		bodyEnd: len(source),
	}
	if offset != supplement.NotFound {
		s.bodyEnd = offset
	}

	root := &tree.Node{Label: label.New(part), NodeType: tree.NodeTypeRegText}
	if err := s.asm.Leaf("", root, token.NewSpan(0, len(source))); err != nil {
		return nil, err
	}
	s.root = root
	s.current = root

	for start := 0; start <= len(source); {
		end := strings.IndexByte(source[start:], '\n')
		if end < 0 {
			end = len(source)
		} else {
			end += start
		}

		var err error
		switch {
		case offset == supplement.NotFound || end <= offset:
			err = s.bodyLine(start, end)
		case s.interp == nil:
			err = s.openInterpretations(offset, end)
		default:
			err = s.supplementLine(start, end)
		}
		if err != nil {
			return nil, err
		}

		start = end + 1
	}

	built, err := s.asm.Finish()
	if err != nil {
		return nil, err
	}
	if err := tree.Validate(built); err != nil {
		return nil, fmt.Errorf("built tree for part %s is inconsistent: %w", part, err)
	}

	s.logger.Debug("built tree", "nodes", tree.Count(built), "supplement", offset != supplement.NotFound)
	return built, nil
}

// detectPart reads the part number from the first part header, or from the
// first section header when the text has none.
func (b *Builder) detectPart(source string) string {
	var fromSection string
	for _, line := range strings.Split(source, "\n") {
		if b.patterns.PartHeader != nil {
			if m := b.patterns.PartHeader.FindStringSubmatch(line); len(m) > 1 {
				return m[1]
			}
		}
		if fromSection == "" {
			if m := b.patterns.SectionHeader.FindStringSubmatch(line); len(m) > 1 {
				fromSection = m[1]
			}
		}
	}
	return fromSection
}

// scan is the state of one Build call.
type scan struct {
	builder *Builder
	source  string
	bodyEnd int
	asm     *stack.Assembler
	tracker *grammar.Tracker
	logger  *slog.Logger

	root    *tree.Node
	section *tree.Node

	// current receives continuation lines.
	current *tree.Node

	interp        *tree.Node
	interpSection *tree.Node

	// interpSections holds the section ids opened in the supplement.
	interpSections map[string]bool

	// commentBase is the stack size of the node comments nest under, or 0
	// before the first interpretation section.
	commentBase int
}

func (s *scan) bodyLine(start, end int) error {
	line := s.source[start:end]
	if strings.TrimSpace(line) == "" {
		return nil
	}
	patterns := s.builder.patterns

	if s.section == nil && s.root.Title == "" && patterns.PartHeader != nil {
		if m := patterns.PartHeader.FindStringSubmatch(line); m != nil {
			if len(m) > 1 && m[1] != s.root.Label.Last() {
				s.logger.Warn("part header does not match configured part", "header", m[1])
			}
			s.root.Title = strings.TrimSpace(line)
			return nil
		}
	}

	if m := patterns.SectionHeader.FindStringSubmatch(line); len(m) > 2 {
		return s.openSection(m[2], line, start, end)
	}

	if s.section != nil {
		placed, err := s.paragraphs(start, end)
		if err != nil || placed {
			return err
		}
	}

	s.appendText(start, end)
	return nil
}

func (s *scan) openSection(id, line string, start, end int) error {
	pos := token.NewSpan(start, end)
	node := &tree.Node{
		Label:    label.New(id),
		Title:    strings.TrimSpace(line),
		NodeType: tree.NodeTypeRegText,
	}
	if err := s.asm.MoveTo(sectionDepth, pos); err != nil {
		return err
	}
	if err := s.asm.Leaf("", node, pos); err != nil {
		return err
	}
	s.section = node
	s.current = node
	s.tracker.Reset()
	return nil
}

// paragraphs places the run of markers opening the line. Every placed node
// but the last holds only its marker text; the last holds the rest of the
// line. placed is false when the first marker does not fit the sequence, in
// which case the line is continuation text.
func (s *scan) paragraphs(start, end int) (placed bool, err error) {
	markers, err := grammar.ParseMarkers(s.source, start, end)
	if err != nil {
		return false, err
	}

	var last *tree.Node
	var lastStart int
	for i, m := range markers {
		depth, ok := s.tracker.NextAhead(m.Tokens.Value, func() string {
			if i+1 < len(markers) {
				return markers[i+1].Tokens.Value
			}
			return s.followingMarker(end)
		})
		if !ok {
			s.logger.Debug("marker out of sequence", "marker", m.Tokens.Text, "offset", m.Start)
			break
		}

		pos := token.NewSpan(m.Start, m.End)
		if err := s.asm.MoveTo(paragraphDepth+depth, pos); err != nil {
			return false, err
		}
		node := &tree.Node{
			Label:    label.New(m.Tokens.Value),
			Text:     m.Tokens.Text,
			NodeType: tree.NodeTypeRegText,
		}
		if err := s.asm.Leaf(m.Tokens.Text, node, pos); err != nil {
			return false, err
		}
		last, lastStart = node, m.Start
	}

	if last == nil {
		return false, nil
	}
	last.Text = strings.TrimRightFunc(s.source[lastStart:end], unicode.IsSpace)
	last.Source.End = end
	s.current = last
	return true, nil
}

// followingMarker returns the first marker of the next line after from that
// opens with one, or "" when a section header or the end of the regulation
// text comes first.
func (s *scan) followingMarker(from int) string {
	for start := from + 1; start < s.bodyEnd; {
		end := strings.IndexByte(s.source[start:s.bodyEnd], '\n')
		if end < 0 {
			end = s.bodyEnd
		} else {
			end += start
		}
		if s.builder.patterns.SectionHeader.MatchString(s.source[start:end]) {
			return ""
		}
		if markers, err := grammar.ParseMarkers(s.source, start, end); err == nil && len(markers) > 0 {
			return markers[0].Tokens.Value
		}
		start = end + 1
	}
	return ""
}

func (s *scan) openInterpretations(offset, end int) error {
	pos := token.NewSpan(offset, end)
	node := &tree.Node{
		Label:    label.New(label.Interpretations),
		Title:    strings.TrimSpace(s.source[offset:end]),
		NodeType: tree.NodeTypeInterp,
	}
	if err := s.asm.MoveTo(interpDepth, pos); err != nil {
		return err
	}
	if err := s.asm.Leaf("", node, pos); err != nil {
		return err
	}
	s.interp = node
	s.current = node
	return nil
}

func (s *scan) supplementLine(start, end int) error {
	line := s.source[start:end]
	if strings.TrimSpace(line) == "" {
		return nil
	}
	patterns := s.builder.patterns

	if re := patterns.InterpSectionHeader; re != nil {
		if m := re.FindStringSubmatch(line); len(m) > 2 {
			return s.openInterpSection(m[2], strings.TrimSpace(line), tree.NodeTypeInterp, token.NewSpan(start, end))
		}
	}

	if re := patterns.InterpParagraphHeader; re != nil {
		if m := re.FindStringSubmatchIndex(line); len(m) > 5 && m[2] >= 0 && m[4] >= 0 {
			return s.openInterpHeader(line[m[2]:m[3]], start+m[4], start+m[5], start, end)
		}
	}

	placed, err := s.comment(start, end)
	if err != nil || placed {
		return err
	}

	s.appendText(start, end)
	return nil
}

func (s *scan) openInterpSection(id, title string, nodeType tree.NodeType, pos token.Span) error {
	node := &tree.Node{
		Label:    label.New(id),
		Title:    title,
		NodeType: nodeType,
	}
	if err := s.asm.MoveTo(interpSectionDepth, pos); err != nil {
		return err
	}
	if err := s.asm.Leaf("", node, pos); err != nil {
		return err
	}
	if s.interpSections == nil {
		s.interpSections = make(map[string]bool)
	}
	s.interpSections[id] = true
	s.interpSection = node
	s.current = node
	s.commentBase = interpSectionDepth
	return nil
}

// openInterpHeader places a paragraph header such as "2(a)(1) Title" as a
// child of its interpretation section. The header's label part is the
// paragraph reference without the section, "a(1)", so headers for nested
// paragraphs never collide with the numbered comments of their parent.
func (s *scan) openInterpHeader(sectionID string, chainStart, chainEnd, start, end int) error {
	pos := token.NewSpan(start, end)

	if s.interpSection == nil || s.interpSection.Label.Last() != sectionID {
		if s.interpSections[sectionID] {
			return &stack.AssemblyError{
				Op:    stack.OpLeaf,
				Label: label.New(s.root.Label.Last(), label.Interpretations, sectionID).Key(),
				Start: start,
				End:   end,
				Err:   fmt.Errorf("%w: %s follows section %s", ErrHeaderOutOfOrder, strings.TrimSpace(s.source[start:end]), s.interpSection.Label.Last()),
			}
		}
		s.logger.Debug("interpretation header without section heading", "section", sectionID, "offset", start)
		if err := s.openInterpSection(sectionID, "", tree.NodeTypeEmpty, token.NewSpan(start, start)); err != nil {
			return err
		}
	}

	markers, err := grammar.ParseMarkers(s.source, chainStart, chainEnd)
	if err != nil {
		return err
	}
	if len(markers) == 0 {
		return &stack.AssemblyError{Op: stack.OpLeaf, Start: start, End: end, Err: fmt.Errorf("interpretation header without paragraph markers")}
	}

	node := &tree.Node{
		Label:    label.New(headerPart(markers)),
		Title:    strings.TrimSpace(s.source[start:end]),
		NodeType: tree.NodeTypeInterp,
	}
	if err := s.asm.MoveTo(interpHeaderDepth, pos); err != nil {
		return err
	}
	if err := s.asm.Leaf("", node, pos); err != nil {
		return err
	}
	s.current = node
	s.commentBase = interpHeaderDepth
	return nil
}

// headerPart renders a marker chain as a single label part: the first
// value bare and the rest parenthesized, "a(1)(ii)".
func headerPart(markers []token.Wrapped[grammar.Marker]) string {
	var b strings.Builder
	b.WriteString(markers[0].Tokens.Value)
	for _, m := range markers[1:] {
		b.WriteString(m.Tokens.Text)
	}
	return b.String()
}

// comment places a numbered interpretation comment ("1.", "ii.", "A.")
// beneath the current header. Comments that would skip a nesting level,
// or that appear before any interpretation section, are continuation text.
func (s *scan) comment(start, end int) (placed bool, err error) {
	if s.commentBase == 0 {
		return false, nil
	}

	marker, err := grammar.ParseCommentMarker(s.source, start, end)
	if err != nil || marker == nil {
		return false, err
	}

	depth, ok := grammar.CommentDepth(marker.Tokens.Value)
	if !ok {
		return false, nil
	}
	target := s.commentBase + 1 + depth
	if target > s.asm.Depth()+1 {
		s.logger.Debug("comment skips a level", "marker", marker.Tokens.Text, "offset", marker.Start)
		return false, nil
	}

	pos := token.NewSpan(marker.Start, end)
	if err := s.asm.MoveTo(target, pos); err != nil {
		return false, err
	}
	node := &tree.Node{
		Label:    label.New(marker.Tokens.Value),
		Text:     strings.TrimRightFunc(s.source[marker.Start:end], unicode.IsSpace),
		NodeType: tree.NodeTypeInterp,
	}
	if err := s.asm.Leaf(marker.Tokens.Text, node, pos); err != nil {
		return false, err
	}
	s.current = node
	return true, nil
}

// appendText adds a continuation line to the current node.
func (s *scan) appendText(start, end int) {
	text := strings.TrimSpace(s.source[start:end])
	if text == "" {
		return
	}
	if s.current.Text == "" {
		s.current.Text = text
	} else {
		s.current.Text += "\n" + text
	}
	if end > s.current.Source.End {
		s.current.Source.End = end
	}
}
