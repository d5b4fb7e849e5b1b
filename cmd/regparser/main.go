package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/regparser/pkg/api"
	"github.com/coolbeans/regparser/pkg/config"
	"github.com/coolbeans/regparser/pkg/layer"
	"github.com/coolbeans/regparser/pkg/output"
	"github.com/coolbeans/regparser/pkg/pipeline"
	"github.com/coolbeans/regparser/pkg/profile"
	"github.com/coolbeans/regparser/pkg/source"
	"github.com/coolbeans/regparser/pkg/tree"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "regparser",
		Short: "Regulation tree parser",
		Long: `Regparser turns the text of a regulation part into a labeled
tree of sections, paragraphs and official interpretations, plus layers of
annotations keyed by node label.

Supported formats: TXT, MD and eCFR XML`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("profile-dir", "", "Directory of YAML parse profiles")
	rootCmd.PersistentFlags().String("profile", "", "Parse profile id")
	rootCmd.PersistentFlags().String("supplement", "", "Supplement holding interpretations (roman numeral)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(markersCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(profilesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the state every command starts from.
type env struct {
	cfg      config.Config
	log      *slog.Logger
	profiles *profile.DefaultRegistry
}

func setup(cmd *cobra.Command) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"profile-dir", &cfg.ProfileDir},
		{"profile", &cfg.Profile},
		{"supplement", &cfg.SupplementID},
		{"log-level", &cfg.LogLevel},
		{"log-format", &cfg.LogFormat},
		{"output", &cfg.OutputDir},
		{"addr", &cfg.Addr},
	}
	for _, o := range overrides {
		if f := cmd.Flags().Lookup(o.flag); f != nil && f.Changed {
			*o.target = f.Value.String()
		}
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := cfg.NewLogger(os.Stderr)
	profiles := profile.NewRegistry(log)
	if err := profiles.LoadDirectory(cfg.ProfileDir); err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}

	return &env{cfg: cfg, log: log, profiles: profiles}, nil
}

// newPipeline builds a pipeline for the configured profile.
func (e *env) newPipeline(part string) (*pipeline.Pipeline, *profile.Profile, error) {
	p, ok := e.profiles.Get(e.cfg.Profile)
	if !ok {
		return nil, nil, fmt.Errorf("unknown profile %q", e.cfg.Profile)
	}
	pl, err := pipeline.New(p, pipeline.Options{
		Part:         part,
		SupplementID: e.cfg.SupplementFor(p),
	}, e.log)
	if err != nil {
		return nil, nil, err
	}
	return pl, p, nil
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>...",
		Short: "Parse regulation files into trees and layers",
		Long: `Parse one or more regulation files. Each file is written to its own
directory under --output holding tree.json, layers/<name>.json and
manifest.json. Use --output - to print the results as JSON instead.

Examples:
  regparser parse reg-e.txt
  regparser parse --part 1026 title-12.xml
  regparser parse --output - reg-e.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			part, _ := cmd.Flags().GetString("part")

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			pl, p, err := e.newPipeline(part)
			if err != nil {
				return err
			}

			docs := make([]*source.Document, 0, len(args))
			for _, path := range args {
				doc, err := source.Load(path, source.Options{Part: part})
				if err != nil {
					return err
				}
				docs = append(docs, doc)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			failed := 0
			var bundles []*output.Bundle
			for _, outcome := range pl.ParseMany(ctx, docs, e.cfg.Workers) {
				if outcome.Err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "%s: %s\n", outcome.Document.Path, describeError(outcome.Err))
					continue
				}

				bundle := output.NewBundle(outcome.Result, outcome.Document.Text, output.Meta{
					Profile:    p.ProfileID,
					SourcePath: outcome.Document.Path,
				})
				if e.cfg.OutputDir == "-" {
					bundles = append(bundles, bundle)
					continue
				}

				dir := filepath.Join(e.cfg.OutputDir, documentName(outcome.Document.Path))
				if err := output.Write(dir, bundle); err != nil {
					return err
				}
				fmt.Printf("%s: %d nodes, %d layer errors -> %s\n",
					outcome.Document.Path, bundle.Manifest.NodeCount, len(bundle.Manifest.LayerErrors), dir)
			}

			if len(bundles) > 0 {
				var v any = bundles
				if len(bundles) == 1 {
					v = bundles[0]
				}
				if err := printJSON(v); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d document(s) failed", failed, len(docs))
			}
			return nil
		},
	}

	cmd.Flags().String("part", "", "Part number (default: taken from the text)")
	cmd.Flags().StringP("output", "o", "", "Output directory, or - for stdout (default from config)")
	cmd.Flags().Int("workers", 0, "Documents parsed concurrently (default from config)")

	return cmd
}

func markersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markers <file>",
		Short: "List the annotations of one layer by node",
		Long: `Parse a regulation file and print one layer's annotations in tree order.

Examples:
  regparser markers reg-e.txt
  regparser markers --layer defined-terms reg-e.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			part, _ := cmd.Flags().GetString("part")
			layerName, _ := cmd.Flags().GetString("layer")
			formatStr, _ := cmd.Flags().GetString("format")

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			pl, _, err := e.newPipeline(part)
			if err != nil {
				return err
			}

			doc, err := source.Load(args[0], source.Options{Part: part})
			if err != nil {
				return err
			}
			result, err := pl.Parse(doc.Text)
			if err != nil {
				return fmt.Errorf("%s: %s", doc.Path, describeError(err))
			}

			annotations, ok := result.Layers.Layers[layerName]
			if !ok {
				return fmt.Errorf("unknown layer %q (available: %s)", layerName, strings.Join(result.Layers.Order, ", "))
			}

			if formatStr == "json" {
				return printJSON(annotations)
			}

			count := 0
			tree.Walk(result.Tree, func(n *tree.Node) bool {
				for _, a := range annotations[n.Label.Key()] {
					fmt.Printf("%-40s %-20s %v\n", n.Label.Key(), a.Text, a.Locations)
					count++
				}
				return true
			})
			fmt.Printf("\n%d annotation(s)\n", count)

			for _, nodeErr := range result.Layers.Errors {
				fmt.Fprintf(os.Stderr, "warning: %v\n", nodeErr)
			}
			return nil
		},
	}

	cmd.Flags().String("part", "", "Part number (default: taken from the text)")
	cmd.Flags().String("layer", layer.ParagraphMarkersName, "Layer to print")
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")

	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-parse a regulation file whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			part, _ := cmd.Flags().GetString("part")

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			pl, p, err := e.newPipeline(part)
			if err != nil {
				return err
			}

			path := filepath.Clean(args[0])
			dir := filepath.Join(e.cfg.OutputDir, documentName(path))
			run := func() {
				doc, err := source.Load(path, source.Options{Part: part})
				if err != nil {
					e.log.Error("load failed", "document", path, "error", err)
					return
				}
				result, err := pl.Parse(doc.Text)
				if err != nil {
					e.log.Error("parse failed", "document", path, "error", describeError(err))
					return
				}
				bundle := output.NewBundle(result, doc.Text, output.Meta{Profile: p.ProfileID, SourcePath: path})
				if err := output.Write(dir, bundle); err != nil {
					e.log.Error("write failed", "dir", dir, "error", err)
					return
				}
				e.log.Info("parsed document", "document", path, "nodes", bundle.Manifest.NodeCount, "run_id", bundle.Manifest.RunID)
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			defer watcher.Close()

			// Editors often replace the file, so watch its directory.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}

			run()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != path {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						run()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					e.log.Warn("watcher error", "error", err)
				case <-sigCh:
					return nil
				}
			}
		},
	}

	cmd.Flags().String("part", "", "Part number (default: taken from the text)")
	cmd.Flags().StringP("output", "o", "", "Output directory (default from config)")

	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parse API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}

			if info, err := os.Stat(e.cfg.ProfileDir); err == nil && info.IsDir() {
				e.profiles.SetOnChange(func(event string, p *profile.Profile) {
					if p == nil {
						e.log.Info("profiles reloaded", "event", event)
						return
					}
					e.log.Info("profile changed", "event", event, "profile", p.ProfileID, "version", p.Version)
				})
				if err := e.profiles.Watch(); err != nil {
					e.log.Warn("profile watch disabled", "error", err)
				} else {
					defer e.profiles.StopWatch()
				}
			}

			httpServer := &http.Server{
				Addr:         e.cfg.Addr,
				Handler:      api.NewServer(e.profiles, e.log, e.cfg),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh
				e.log.Info("shutting down...")

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			e.log.Info("starting regparser", "addr", e.cfg.Addr, "profiles", e.profiles.Count())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config)")

	return cmd
}

func profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect parse profiles",
		Long: `List the available parse profiles or check a profile file.

Examples:
  regparser profiles list
  regparser profiles check profiles/fr-rule.yaml`,
	}

	cmd.AddCommand(profilesListCmd())
	cmd.AddCommand(profilesCheckCmd())

	return cmd
}

func profilesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available parse profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			profiles := e.profiles.List()

			if formatStr == "json" {
				return printJSON(profiles)
			}

			fmt.Printf("%-16s %-28s %-10s %-10s %s\n", "ID", "NAME", "VERSION", "SUPPLEMENT", "FILE")
			fmt.Println(strings.Repeat("-", 90))
			for _, p := range profiles {
				file := p.File()
				if file == "" {
					file = "(built-in)"
				}
				fmt.Printf("%-16s %-28s %-10s %-10s %s\n",
					p.ProfileID, truncateString(p.Name, 28), p.Version, p.Supplement(), file)
			}
			fmt.Printf("\n%d profile(s)\n", len(profiles))
			return nil
		},
	}

	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")

	return cmd
}

func profilesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Validate and compile profile files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}

			registry := profile.NewRegistry(e.log)
			failed := 0
			for _, path := range args {
				if err := registry.LoadFile(path); err != nil {
					failed++
					fmt.Printf("FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Printf("ok   %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d profile file(s) invalid", failed)
			}
			return nil
		},
	}
}

// describeError renders a parse failure with its code and source range.
func describeError(err error) string {
	code := pipeline.Code(err)
	if code == "" {
		return err.Error()
	}
	if start, end, ok := pipeline.SourceRange(err); ok {
		return fmt.Sprintf("%s [%d:%d]: %v", code, start, end, err)
	}
	return fmt.Sprintf("%s: %v", code, err)
}

func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
