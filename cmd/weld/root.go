package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nooga/weld/pkg/bundle"
	"github.com/nooga/weld/pkg/driver"
	"github.com/nooga/weld/pkg/linker"
	"github.com/nooga/weld/pkg/modules"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"

	verbose bool
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "weld",
		Short: "Bundle JavaScript and CSS modules",
		Long: TitleStyle.Render("weld") + SubtitleStyle.Render(" - a JavaScript and CSS module bundler") + `

weld follows the imports of an entry module and concatenates every module
it reaches into one script and one stylesheet, renaming top-level bindings
so the modules can share a single scope.

` + SubtitleStyle.Render("Examples:") + `
  weld build src/main.js              Bundle into ./dist
  weld build -m production --out www  Production bundle with .map files
  WELD_MODE=production weld build     Mode from the environment`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "weld "+Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline events")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is weld.yaml in the project root)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogger installs a development logger in every package when
// --verbose is set. Packages log nothing otherwise.
func setupLogger() error {
	if !verbose {
		return nil
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	modules.SetLogger(l.Named("modules"))
	linker.SetLogger(l.Named("linker"))
	bundle.SetLogger(l.Named("bundle"))
	driver.SetLogger(l.Named("driver"))
	return nil
}
