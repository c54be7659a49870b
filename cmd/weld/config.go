package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/nooga/weld/pkg/bundle"
	"github.com/nooga/weld/pkg/driver"
	"github.com/nooga/weld/pkg/modules"
)

const (
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "weld"
	// EnvPrefix prefixes the environment variables weld reads.
	EnvPrefix = "WELD"
)

// Config is the merged result of defaults, weld.yaml, WELD_* variables
// and flags, in increasing precedence.
type Config struct {
	Entry       string            `mapstructure:"entry"`
	Root        string            `mapstructure:"root"`
	OutDir      string            `mapstructure:"out_dir"`
	Mode        string            `mapstructure:"mode"`
	External    []string          `mapstructure:"external"`
	PublicPath  string            `mapstructure:"public_path"`
	AssetPrefix string            `mapstructure:"asset_prefix"`
	Define      map[string]string `mapstructure:"define"`
	Script      string            `mapstructure:"script"`
	Style       string            `mapstructure:"style"`
	Markup      string            `mapstructure:"markup"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	opts := driver.DefaultOptions()
	return Config{
		Entry:       "src/main.js",
		Root:        ".",
		OutDir:      "dist",
		Mode:        opts.Mode.String(),
		AssetPrefix: "/assets",
		Script:      opts.ScriptID,
		Style:       opts.StyleID,
		Markup:      opts.MarkupID,
	}
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"root":         "root",
	"out_dir":      "out",
	"mode":         "mode",
	"external":     "external",
	"public_path":  "public-path",
	"asset_prefix": "asset-prefix",
}

// loadConfig reads the configuration for a build. The entry argument,
// when given, wins over everything else.
func loadConfig(flags *pflag.FlagSet, args []string) (*Config, error) {
	// Define keys contain dots, so dots cannot nest keys.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))

	defaults := DefaultConfig()
	v.SetDefault("entry", defaults.Entry)
	v.SetDefault("root", defaults.Root)
	v.SetDefault("out_dir", defaults.OutDir)
	v.SetDefault("mode", defaults.Mode)
	v.SetDefault("external", []string{})
	v.SetDefault("public_path", defaults.PublicPath)
	v.SetDefault("asset_prefix", defaults.AssetPrefix)
	v.SetDefault("define", map[string]string{})
	v.SetDefault("script", defaults.Script)
	v.SetDefault("style", defaults.Style)
	v.SetDefault("markup", defaults.Markup)

	for key, name := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("root"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		defines, err := readDefines(used)
		if err != nil {
			return nil, err
		}
		if defines != nil {
			cfg.Define = defines
		}
	}
	if len(args) > 0 {
		cfg.Entry = args[0]
	}
	return cfg, nil
}

// readDefines decodes the define section of a YAML or JSON config file.
// Viper lowercases map keys, but define keys name case-sensitive globals
// like process.env.API_URL.
func readDefines(file string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc struct {
		Define map[string]string `yaml:"define"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode define: %w", err)
	}
	return doc.Define, nil
}

// Options turns the configuration into bundler options.
func (c *Config) Options() (driver.Options, error) {
	mode, ok := bundle.ParseMode(c.Mode)
	if !ok {
		return driver.Options{}, fmt.Errorf("unknown mode %q (want development or production)", c.Mode)
	}
	opts := driver.DefaultOptions()
	opts.Mode = mode
	opts.External = c.External
	opts.PublicPath = c.PublicPath
	opts.Define = c.Define
	opts.ScriptID = c.Script
	opts.StyleID = c.Style
	opts.MarkupID = c.Markup
	prefix := c.AssetPrefix
	opts.ResourcePather = modules.ResourcePatherFunc(func(id string) string {
		return path.Join(prefix, strings.ReplaceAll(id, ":", "/"))
	})
	return opts, nil
}

// EntryID turns the entry path into a module id rooted at the project.
func (c *Config) EntryID() string {
	entry := path.Clean(strings.ReplaceAll(c.Entry, "\\", "/"))
	if !strings.HasPrefix(entry, "/") {
		entry = "/" + entry
	}
	return entry
}
