// Package pipeline runs the full parse of a regulation: tree building
// followed by every registered layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/coolbeans/regparser/pkg/layer"
	"github.com/coolbeans/regparser/pkg/profile"
	"github.com/coolbeans/regparser/pkg/rules"
	"github.com/coolbeans/regparser/pkg/source"
	"github.com/coolbeans/regparser/pkg/stack"
	"github.com/coolbeans/regparser/pkg/tree"
)

const (
	// CodeStructureInvalid marks a document whose markers cannot be
	// assembled into a tree.
	CodeStructureInvalid = "DOCUMENT_STRUCTURE_INVALID"

	// CodePartNotFound marks a document with no recognizable part number.
	CodePartNotFound = "DOCUMENT_PART_NOT_FOUND"
)

// Options configure a Pipeline.
type Options struct {
	Part         string
	SupplementID string

	// Layers returns fresh layer instances for one document. Defaults to
	// DefaultLayers.
	Layers func() []layer.Layer
}

// DefaultLayers returns paragraph markers, defined terms, internal
// citations and external citations, in that order.
func DefaultLayers() []layer.Layer {
	return []layer.Layer{
		layer.NewParagraphMarkers(),
		layer.NewDefinedTerms(),
		layer.NewInternalCitations(),
		layer.NewExternalCitations(),
	}
}

// Result is the output of one successful parse.
type Result struct {
	Tree   *tree.Node
	Layers *layer.Result
}

// Pipeline parses documents that share a profile and options.
type Pipeline struct {
	profile *profile.Profile
	builder *rules.Builder
	layers  func() []layer.Layer
	names   []string
	logger  *slog.Logger
}

// New creates a pipeline for p.
func New(p *profile.Profile, opts Options, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	builder, err := rules.New(p, rules.Options{Part: opts.Part, SupplementID: opts.SupplementID}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating builder: %w", err)
	}

	layers := opts.Layers
	if layers == nil {
		layers = DefaultLayers
	}
	runner, err := newRunner(layers(), logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		profile: p,
		builder: builder,
		layers:  layers,
		names:   runner.Names(),
		logger:  logger,
	}, nil
}

func newRunner(layers []layer.Layer, logger *slog.Logger) (*layer.Runner, error) {
	runner := layer.NewRunner(logger)
	for _, l := range layers {
		if err := runner.Register(l); err != nil {
			return nil, fmt.Errorf("registering layer: %w", err)
		}
	}
	return runner, nil
}

// Profile returns the profile the pipeline parses with.
func (p *Pipeline) Profile() *profile.Profile {
	return p.profile
}

// LayerNames returns the layer names in registration order.
func (p *Pipeline) LayerNames() []string {
	return append([]string(nil), p.names...)
}

// Parse builds the tree for text and runs every layer over it. A document
// that cannot be assembled yields one structured error and no partial tree.
func (p *Pipeline) Parse(text string) (*Result, error) {
	root, err := p.builder.Build(text)
	if err != nil {
		return nil, wrapDocumentError(err)
	}

	runner, err := newRunner(p.layers(), p.logger)
	if err != nil {
		return nil, err
	}
	return &Result{Tree: root, Layers: runner.Run(root)}, nil
}

// Outcome is the result of one document in ParseMany.
type Outcome struct {
	Document *source.Document
	Result   *Result
	Err      error
}

// ParseMany parses independent documents with at most workers running at
// once. Outcomes are returned in input order. Documents not yet started
// when ctx is cancelled fail with the context error.
func (p *Pipeline) ParseMany(ctx context.Context, docs []*source.Document, workers int) []Outcome {
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]Outcome, len(docs))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{Document: doc, Err: err}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			outcomes[i] = Outcome{Document: doc, Err: ctx.Err()}
			continue
		}

		wg.Add(1)
		go func(i int, doc *source.Document) {
			defer wg.Done()
			defer func() { <-sem }()

			log := p.logger.With("document", doc.Path)
			result, err := p.Parse(doc.Text)
			if err != nil {
				log.Error("parse failed", "error", err)
			} else {
				log.Info("parsed document", "nodes", tree.Count(result.Tree), "layer_errors", len(result.Layers.Errors))
			}
			outcomes[i] = Outcome{Document: doc, Result: result, Err: err}
		}(i, doc)
	}

	wg.Wait()
	return outcomes
}

func wrapDocumentError(err error) error {
	if goerrors.IsWrapped(err) {
		return err
	}
	if errors.Is(err, rules.ErrNoPart) {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "document part not found").
			WithTextCode(CodePartNotFound)
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "document structure invalid").
		WithTextCode(CodeStructureInvalid)
}

// IsDocumentError reports whether err is a document failure from Parse.
func IsDocumentError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryValidation)
}

// Code returns the text code of a document failure, or "".
func Code(err error) string {
	switch {
	case !IsDocumentError(err):
		return ""
	case errors.Is(err, rules.ErrNoPart):
		return CodePartNotFound
	default:
		return CodeStructureInvalid
	}
}

// SourceRange returns the offending [start, end) range of a structural
// failure.
func SourceRange(err error) (start, end int, ok bool) {
	var assemblyErr *stack.AssemblyError
	if errors.As(err, &assemblyErr) {
		return assemblyErr.Start, assemblyErr.End, true
	}
	return 0, 0, false
}
