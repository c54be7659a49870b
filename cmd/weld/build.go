package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nooga/weld/pkg/bundle"
	"github.com/nooga/weld/pkg/driver"
)

var (
	watch bool

	buildCmd = &cobra.Command{
		Use:   "build [entry]",
		Short: "Bundle the modules reachable from an entry",
		Long: `Bundle the modules reachable from an entry module and write the
script, stylesheet, markup and resources to the output directory.

The entry defaults to the "entry" key of weld.yaml, then src/main.js.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBuild,
	}
)

func init() {
	flags := buildCmd.Flags()
	flags.String("root", ".", "project root that module ids are relative to")
	flags.StringP("out", "o", "dist", "output directory")
	flags.StringP("mode", "m", "development", "development (inline maps) or production (.map files)")
	flags.StringSlice("external", nil, "specifiers left to the host environment")
	flags.String("public-path", "", "prefix of the URLs the markup references")
	flags.String("asset-prefix", "/assets", "public path prefix of resources")
	flags.BoolVarP(&watch, "watch", "w", false, "rebuild when files under the root change")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), args)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	opts, err := cfg.Options()
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	b := driver.NewWithBaseDir(cfg.Root, opts)
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	ok := buildOnce(cmd.Context(), b, cfg, out, errOut)
	if watch {
		return watchAndRebuild(cmd.Context(), cfg.Root, cfg.OutDir, func() {
			buildOnce(cmd.Context(), b, cfg, out, errOut)
		})
	}
	if !ok {
		return &ExitError{Code: 1}
	}
	return nil
}

// buildOnce runs one build, prints its diagnostics and writes the artifact
// when the build has no errors.
func buildOnce(ctx context.Context, b *driver.Bundler, cfg *Config, out, errOut io.Writer) bool {
	res := b.Build(ctx, cfg.EntryID())
	renderDiagnostics(errOut, res.Diagnostics)
	if !res.OK() {
		fmt.Fprintln(errOut, ErrorStyle.Render("✗ build failed")+SubtitleStyle.Render(fmt.Sprintf(" (%s)", res.Duration.Round(time.Millisecond))))
		return false
	}

	written, err := writeArtifact(cfg.OutDir, res.Artifact)
	if err != nil {
		fmt.Fprintln(errOut, ErrorStyle.Render("Error: ")+err.Error())
		return false
	}
	stats := res.Graph.Stats
	fmt.Fprintf(out, "%s %d modules (%d parsed, %d cached) in %s\n",
		SuccessStyle.Render("✓ bundled"), stats.Modules, stats.Parsed, stats.CacheHits, res.Duration.Round(time.Millisecond))
	for _, name := range written {
		fmt.Fprintln(out, "  "+PathStyle.Render(name))
	}
	return true
}

// writeArtifact writes every output under dir and returns the written
// paths.
func writeArtifact(dir string, a *bundle.Artifact) ([]string, error) {
	var written []string
	for _, f := range a.Files() {
		rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(f.ID, "/")))
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return written, fmt.Errorf("output %q escapes %s", f.ID, dir)
		}
		dest := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return written, fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, f.Content, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", dest, err)
		}
		written = append(written, dest)
	}
	return written, nil
}
