// Package output persists parse results: the tree, one file per layer and a
// manifest describing the run.
package output

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/coolbeans/regparser/pkg/layer"
	"github.com/coolbeans/regparser/pkg/pipeline"
	"github.com/coolbeans/regparser/pkg/tree"
)

const (
	treeFileName     = "tree.json"
	layersDir        = "layers"
	manifestFileName = "manifest.json"
	manifestVersion  = "1.0.0"
)

// Manifest describes one parse run.
type Manifest struct {
	Version      string            `json:"version"`
	RunID        string            `json:"run_id"`
	Part         string            `json:"part"`
	Profile      string            `json:"profile,omitempty"`
	SourcePath   string            `json:"source_path,omitempty"`
	SourceDigest string            `json:"source_digest"`
	NodeCount    int               `json:"node_count"`
	Layers       []string          `json:"layers"`
	LayerErrors  []layer.NodeError `json:"layer_errors"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// Meta carries the run details that are not part of the parse result.
type Meta struct {
	Profile    string
	SourcePath string
}

// Bundle is everything produced for one document.
type Bundle struct {
	Manifest Manifest                         `json:"manifest"`
	Tree     *tree.Node                       `json:"tree"`
	Layers   map[string]layer.NodeAnnotations `json:"layers"`
}

// NewBundle assembles a bundle with a fresh run id.
func NewBundle(result *pipeline.Result, text string, meta Meta) *Bundle {
	layerErrors := result.Layers.Errors
	if layerErrors == nil {
		layerErrors = []layer.NodeError{}
	}

	return &Bundle{
		Manifest: Manifest{
			Version:      manifestVersion,
			RunID:        uuid.NewString(),
			Part:         result.Tree.Label.Key(),
			Profile:      meta.Profile,
			SourcePath:   meta.SourcePath,
			SourceDigest: Digest(text),
			NodeCount:    tree.Count(result.Tree),
			Layers:       append([]string{}, result.Layers.Order...),
			LayerErrors:  layerErrors,
			GeneratedAt:  time.Now().UTC(),
		},
		Tree:   result.Tree,
		Layers: result.Layers.Layers,
	}
}

// Digest returns the hex BLAKE3 digest of the source text.
func Digest(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Write stores the bundle under dir: tree.json, layers/<name>.json and
// manifest.json. The manifest is written last.
func Write(dir string, b *Bundle) error {
	if err := os.MkdirAll(filepath.Join(dir, layersDir), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, treeFileName), b.Tree); err != nil {
		return err
	}

	for _, name := range b.Manifest.Layers {
		annotations := b.Layers[name]
		if annotations == nil {
			annotations = layer.NodeAnnotations{}
		}
		if err := writeJSON(filepath.Join(dir, layersDir, name+".json"), annotations); err != nil {
			return err
		}
	}

	return writeJSON(filepath.Join(dir, manifestFileName), b.Manifest)
}

// ReadManifest loads the manifest written by Write.
func ReadManifest(dir string) (*Manifest, error) {
	var manifest Manifest
	if err := readJSON(filepath.Join(dir, manifestFileName), &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// ReadTree loads the tree written by Write.
func ReadTree(dir string) (*tree.Node, error) {
	var root tree.Node
	if err := readJSON(filepath.Join(dir, treeFileName), &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// ReadLayer loads one layer file written by Write.
func ReadLayer(dir, name string) (layer.NodeAnnotations, error) {
	var annotations layer.NodeAnnotations
	if err := readJSON(filepath.Join(dir, layersDir, name+".json"), &annotations); err != nil {
		return nil, err
	}
	return annotations, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
