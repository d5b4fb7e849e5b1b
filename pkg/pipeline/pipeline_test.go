package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/coolbeans/regparser/pkg/layer"
	"github.com/coolbeans/regparser/pkg/profile"
	"github.com/coolbeans/regparser/pkg/source"
	"github.com/coolbeans/regparser/pkg/stack"
	"github.com/coolbeans/regparser/pkg/tree"
)

const regText = `PART 1005—ELECTRONIC FUND TRANSFERS (REGULATION E)
§ 1005.2 Definitions.
(a) “Account” means a demand deposit account.
(b) The term business day means any day.
(c) Other.
Supplement I to Part 1005—Official Interpretations
Section 1005.2—Definitions
2(a) Account.
1. Consumer asset account.
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := New(profile.Default(), opts, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestParseParagraphMarkers(t *testing.T) {
	result, err := newPipeline(t, Options{}).Parse(regText)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	markers := result.Layers.Layers[layer.ParagraphMarkersName]
	want := map[string]string{
		"1005-2-a":                   "(a)",
		"1005-2-b":                   "(b)",
		"1005-2-c":                   "(c)",
		"1005-Interpretations-2-a-1": "1.",
	}
	if len(markers) != len(want) {
		t.Errorf("paragraph markers on %d nodes, want %d: %v", len(markers), len(want), markers)
	}
	for key, text := range want {
		got := markers[key]
		if len(got) != 1 || got[0].Text != text || len(got[0].Locations) != 1 || got[0].Locations[0] != 0 {
			t.Errorf("markers[%s] = %+v, want {%s [0]}", key, got, text)
		}
	}
}

func TestParseDefinedTerms(t *testing.T) {
	result, err := newPipeline(t, Options{}).Parse(regText)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	terms := result.Layers.Layers[layer.DefinedTermsName]
	tests := []struct {
		key      string
		term     string
		location int
	}{
		{"1005-2-a", "Account", len("(a) “")},
		{"1005-2-b", "business day", len("(b) The term ")},
	}
	for _, tt := range tests {
		got := terms[tt.key]
		if len(got) != 1 || got[0].Text != tt.term || got[0].Locations[0] != tt.location {
			t.Errorf("terms[%s] = %+v, want {%s [%d]}", tt.key, got, tt.term, tt.location)
		}
	}
}

func TestParseCitations(t *testing.T) {
	input := "§ 1005.3 Coverage.\n" +
		"(a) General. This part applies as provided in § 1005.2(b) and 12 CFR 1026.1.\n" +
		"(b) Exceptions. See paragraph (a) of this section.\n"

	result, err := newPipeline(t, Options{}).Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	internal := result.Layers.Layers[layer.InternalCitationsName]
	if got := internal["1005-3-a"]; len(got) != 1 || got[0].Text != "1005-2-b" {
		t.Errorf("internal citations of 1005-3-a = %+v", got)
	}
	if got := internal["1005-3-b"]; len(got) != 1 || got[0].Text != "1005-3-a" {
		t.Errorf("internal citations of 1005-3-b = %+v", got)
	}

	external := result.Layers.Layers[layer.ExternalCitationsName]
	if got := external["1005-3-a"]; len(got) != 1 || got[0].Text != "12 CFR 1026.1" {
		t.Errorf("external citations of 1005-3-a = %+v", got)
	}
	if len(external) != 1 {
		t.Errorf("external citations on %d nodes, want 1", len(external))
	}
}

func TestParseLayerOrder(t *testing.T) {
	p := newPipeline(t, Options{})
	result, err := p.Parse(regText)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	keyed := result.Layers.ForNode("1005-2-a")
	if len(keyed) != 2 || keyed[0].Layer != layer.ParagraphMarkersName || keyed[1].Layer != layer.DefinedTermsName {
		t.Errorf("ForNode() = %+v, want markers then terms", keyed)
	}

	names := p.LayerNames()
	if strings.Join(names, ",") != "paragraph-markers,defined-terms,internal-citations,external-citations" {
		t.Errorf("LayerNames() = %v", names)
	}
}

func TestParseStructuralError(t *testing.T) {
	input := "§ 1005.2 Definitions.\n(a) One.\n§ 1005.2 Definitions again.\n"
	result, err := newPipeline(t, Options{}).Parse(input)
	if result != nil {
		t.Error("failed parse should not return a partial result")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("Parse() error = %v, want validation category", err)
	}
	if !IsDocumentError(err) {
		t.Error("IsDocumentError() = false")
	}
	if Code(err) != CodeStructureInvalid {
		t.Errorf("Code() = %q, want %q", Code(err), CodeStructureInvalid)
	}
	if !errors.Is(err, stack.ErrDuplicateLabel) {
		t.Errorf("Parse() error = %v, want ErrDuplicateLabel in chain", err)
	}

	start, end, ok := SourceRange(err)
	if !ok {
		t.Fatal("SourceRange() ok = false")
	}
	wantStart := strings.LastIndex(input, "§ 1005.2")
	if start != wantStart || end != len(input)-1 {
		t.Errorf("SourceRange() = [%d, %d), want [%d, %d)", start, end, wantStart, len(input)-1)
	}
}

func TestParsePartNotFound(t *testing.T) {
	_, err := newPipeline(t, Options{}).Parse("no headers here\n")
	if Code(err) != CodePartNotFound {
		t.Errorf("Code() = %q, want %q", Code(err), CodePartNotFound)
	}
	if _, _, ok := SourceRange(err); ok {
		t.Error("SourceRange() ok = true for missing part")
	}
}

func TestCodeOfOtherErrors(t *testing.T) {
	if Code(errors.New("disk full")) != "" {
		t.Error("Code() of unrelated error should be empty")
	}
	if IsDocumentError(nil) {
		t.Error("IsDocumentError(nil) = true")
	}
}

type namedLayer struct{ name string }

func (l namedLayer) Name() string { return l.name }

func (l namedLayer) Process(*tree.Node) ([]layer.Annotation, error) { return nil, nil }

func TestNewRejectsDuplicateLayers(t *testing.T) {
	_, err := New(profile.Default(), Options{
		Layers: func() []layer.Layer {
			return []layer.Layer{namedLayer{"x"}, namedLayer{"x"}}
		},
	}, quietLogger())
	if err == nil {
		t.Error("New() with duplicate layer names should fail")
	}
}

func TestNewInvalidSupplement(t *testing.T) {
	if _, err := New(profile.Default(), Options{SupplementID: "nope"}, nil); err == nil {
		t.Error("New() with invalid supplement id should fail")
	}
}

func TestParseMany(t *testing.T) {
	docs := []*source.Document{
		{Path: "a.txt", Text: regText},
		{Path: "bad.txt", Text: "§ 1005.2 A.\n§ 1005.2 B.\n"},
		{Path: "c.txt", Text: "§ 1026.4 Finance charge.\n(a) Definition.\n"},
	}

	outcomes := newPipeline(t, Options{}).ParseMany(context.Background(), docs, 2)
	if len(outcomes) != 3 {
		t.Fatalf("ParseMany() = %d outcomes, want 3", len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Document != docs[i] {
			t.Errorf("outcome %d document = %s, want %s", i, outcome.Document.Path, docs[i].Path)
		}
	}
	if outcomes[0].Err != nil || outcomes[0].Result.Tree.Label.Key() != "1005" {
		t.Errorf("outcome 0 = %+v", outcomes[0])
	}
	if Code(outcomes[1].Err) != CodeStructureInvalid {
		t.Errorf("outcome 1 error = %v", outcomes[1].Err)
	}
	if outcomes[2].Err != nil || outcomes[2].Result.Tree.Label.Key() != "1026" {
		t.Errorf("outcome 2 = %+v", outcomes[2])
	}
}

func TestParseManyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []*source.Document{{Path: "a.txt", Text: regText}, {Path: "b.txt", Text: regText}}
	for _, outcome := range newPipeline(t, Options{}).ParseMany(ctx, docs, 0) {
		if !errors.Is(outcome.Err, context.Canceled) {
			t.Errorf("%s error = %v, want context.Canceled", outcome.Document.Path, outcome.Err)
		}
	}
}
