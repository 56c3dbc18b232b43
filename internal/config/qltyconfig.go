package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/qlty-sh/qlty-core/internal/planner"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
	"github.com/qlty-sh/qlty-core/internal/source"
)

// QltyConfig is the resolved project configuration: the enabled-plugin
// list, plugin-definition source repositories, and the run-level knobs the
// Executor/Planner need. It is the TOML-decoded analogue of the data the
// teacher's CUE-based Config/Loader resolved for tool/runtime manifests;
// spec.md scopes the exact TOML dialect out of core, so only the
// resolution-order *shape* (defaults, then project file, then environment
// overrides) is carried over here, not any CUE mechanics.
type QltyConfig struct {
	Plugins map[string]plugin.Enabled
	Sources []source.PluginSource
	Ignores []planner.Ignore

	Jobs               int
	SkipErroredPlugins bool
	MaxIssues          int
	MaxIssuesPerFile   int
}

// DefaultQltyConfig returns the built-in defaults, the first layer of the
// merge order described on QltyConfig.
func DefaultQltyConfig() QltyConfig {
	return QltyConfig{
		Plugins: map[string]plugin.Enabled{},
	}
}

// tomlFile is the on-disk .qlty/qlty.toml shape.
type tomlFile struct {
	Plugins map[string]tomlPlugin `toml:"plugins"`
	Sources []tomlSource          `toml:"sources"`
	Ignores []tomlIgnore          `toml:"ignore"`
	Run     tomlRun               `toml:"run"`
	Cache   tomlCache             `toml:"cache"`
}

type tomlIgnore struct {
	FilePatterns []string `toml:"file_patterns"`
	Plugins      []string `toml:"plugins"`
	Rules        []string `toml:"rules"`
	Levels       []string `toml:"levels"`
}

type tomlPlugin struct {
	Mode           string              `toml:"mode"`
	Prefix         string              `toml:"prefix"`
	Version        string              `toml:"version"`
	PackageFile    string              `toml:"package_file"`
	PackageFilters []string            `toml:"package_filters"`
	ExtraPackages  []tomlExtraPackage  `toml:"extra_packages"`
	AffectsCache   []string            `toml:"affects_cache"`
	ConfigFiles    []string            `toml:"config_files"`
	Triggers       []string            `toml:"triggers"`
	Drivers        []string            `toml:"drivers"`
}

type tomlExtraPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type tomlSource struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
	Ref  string `toml:"ref"`
}

type tomlRun struct {
	Jobs               int  `toml:"jobs"`
	SkipErroredPlugins bool `toml:"skip_errored_plugins"`
}

type tomlCache struct {
	MaxIssues        int `toml:"max_issues"`
	MaxIssuesPerFile int `toml:"max_issues_per_file"`
}

// Environment variable overrides, the third and final merge layer.
const (
	EnvJobs               = "QLTY_JOBS"
	EnvSkipErroredPlugins = "QLTY_SKIP_ERRORED_PLUGINS"
	EnvMaxIssues          = "QLTY_MAX_ISSUES"
)

// LoadQltyConfig resolves QltyConfig from path (typically
// "<workspace>/.qlty/qlty.toml"), merging built-in defaults, the project
// file (if present), and environment variable overrides, in that order. A
// missing file is not an error: it resolves to the defaults, matching the
// teacher's own "no config.cue present -> DefaultConfig()" convention.
func LoadQltyConfig(path string) (QltyConfig, error) {
	cfg := DefaultQltyConfig()

	if _, err := os.Stat(path); err == nil {
		var file tomlFile
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return cfg, qerrors.Wrap(qerrors.CategoryConfig, "failed to parse qlty.toml", err).WithDetail("path", path)
		}
		if err := mergeFile(&cfg, file); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, qerrors.Wrap(qerrors.CategoryConfig, "failed to stat qlty.toml", err).WithDetail("path", path)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func mergeFile(cfg *QltyConfig, file tomlFile) error {
	for name, p := range file.Plugins {
		enabled := plugin.Enabled{
			Name:           name,
			Prefix:         p.Prefix,
			Mode:           plugin.Mode(p.Mode),
			Version:        p.Version,
			PackageFile:    p.PackageFile,
			PackageFilters: p.PackageFilters,
			AffectsCache:   p.AffectsCache,
			ConfigFiles:    p.ConfigFiles,
			Triggers:       p.Triggers,
			Drivers:        p.Drivers,
		}
		if enabled.Mode == "" {
			enabled.Mode = plugin.ModeBlock
		}
		for _, ep := range p.ExtraPackages {
			enabled.ExtraPackages = append(enabled.ExtraPackages, plugin.ExtraPackage{Name: ep.Name, Version: ep.Version})
		}
		if err := enabled.Validate(); err != nil {
			return err
		}
		cfg.Plugins[name] = enabled
	}

	for _, s := range file.Sources {
		cfg.Sources = append(cfg.Sources, source.PluginSource{Name: s.Name, URL: s.URL, Ref: s.Ref})
	}

	for _, ig := range file.Ignores {
		cfg.Ignores = append(cfg.Ignores, planner.Ignore{
			FilePatterns: ig.FilePatterns,
			Plugins:      ig.Plugins,
			Rules:        ig.Rules,
			Levels:       ig.Levels,
		})
	}

	if file.Run.Jobs > 0 {
		cfg.Jobs = file.Run.Jobs
	}
	if file.Run.SkipErroredPlugins {
		cfg.SkipErroredPlugins = true
	}
	if file.Cache.MaxIssues > 0 {
		cfg.MaxIssues = file.Cache.MaxIssues
	}
	if file.Cache.MaxIssuesPerFile > 0 {
		cfg.MaxIssuesPerFile = file.Cache.MaxIssuesPerFile
	}
	return nil
}

func applyEnvOverrides(cfg *QltyConfig) {
	if v := os.Getenv(EnvJobs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Jobs = n
		}
	}
	if v := os.Getenv(EnvSkipErroredPlugins); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SkipErroredPlugins = b
		}
	}
	if v := os.Getenv(EnvMaxIssues); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIssues = n
		}
	}
}
