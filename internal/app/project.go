// Package app wires the leaf packages (internal/config, internal/source,
// internal/tool, internal/cache, internal/installlog) into what a CLI
// command needs before planning: load project configuration, sync and index
// plugin definitions, resolve enabled plugins, and provide the tool resolver
// and shared services an executor.Input takes. Planning, running and
// summarizing are left to the caller. Every package it depends on could be used standalone without this one;
// app exists only because those packages were deliberately kept decoupled
// from each other, and something has to hold the wiring.
package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/qlty-sh/qlty-core/internal/cache"
	"github.com/qlty-sh/qlty-core/internal/config"
	"github.com/qlty-sh/qlty-core/internal/executor"
	"github.com/qlty-sh/qlty-core/internal/installlog"
	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
	"github.com/qlty-sh/qlty-core/internal/source"
	"github.com/qlty-sh/qlty-core/internal/tool"
	"github.com/qlty-sh/qlty-core/internal/tool/download"
)

// Project is one loaded workspace: its resolved configuration, its indexed
// plugin definitions, and the shared services (cache, install log,
// downloader) every run against it uses.
type Project struct {
	Root    string
	QltyDir string
	Config  config.QltyConfig

	Definitions map[string]plugin.Definition
	toolSpecs   map[string]tool.Spec

	Cache      *cache.Cache
	Logs       *installlog.Store
	Downloader download.Downloader

	cacheDir string
}

// Load resolves configuration for the workspace rooted at root, syncs every
// configured plugin source, and indexes their definitions. A workspace with
// no .qlty/qlty.toml still loads successfully (QltyConfig's own
// not-found-is-defaults rule), just with zero plugins enabled.
func Load(ctx context.Context, root string) (*Project, error) {
	qltyDir := filepath.Join(root, ".qlty")
	cfg, err := config.LoadQltyConfig(filepath.Join(qltyDir, "qlty.toml"))
	if err != nil {
		return nil, err
	}

	defs := make(map[string]plugin.Definition)
	specs := make(map[string]tool.Spec)

	mgr := source.NewManager(filepath.Join(qltyDir, "sources"))
	for _, src := range cfg.Sources {
		repo, err := mgr.Sync(ctx, src)
		if err != nil {
			return nil, err
		}
		files, err := repo.DefinitionFiles()
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if filepath.Ext(f) != ".toml" {
				continue
			}
			loaded, err := source.LoadDefinition(f)
			if err != nil {
				return nil, err
			}
			defs[loaded.Definition.Name] = loaded.Definition
			specs[loaded.Definition.Name] = loaded.Tool
		}
	}

	cacheDir := filepath.Join(qltyDir, "cache")
	issueCache, err := cache.New(filepath.Join(cacheDir, "issues"))
	if err != nil {
		return nil, err
	}

	return &Project{
		Root:        root,
		QltyDir:     qltyDir,
		Config:      cfg,
		Definitions: defs,
		toolSpecs:   specs,
		Cache:       issueCache,
		Logs:        installlog.NewStore(),
		Downloader:  download.New(),
		cacheDir:    cacheDir,
	}, nil
}

// ResolveEnabled resolves every configured plugin's version sentinel
// against its Definition, returning the result both as the map
// Executor.Input.Enabled wants and, via EnabledSlice, as the
// planner.Input.RawEnabled slice wants. Resolving once here, rather than
// letting the Planner resolve independently, is what keeps the Tool this
// package's ToolResolver builds in sync with the version the Planner
// planned against (ResolveSentinel is idempotent on an already-literal
// version, so passing the resolved map into planner.Plan as well is safe).
func (p *Project) ResolveEnabled() (map[string]plugin.Enabled, error) {
	resolved := make(map[string]plugin.Enabled, len(p.Config.Plugins))
	for name, enabled := range p.Config.Plugins {
		def, ok := p.Definitions[name]
		if !ok {
			return nil, qerrors.New(qerrors.CategoryConfig, "unknown plugin "+name).
				WithCode(qerrors.CodeUnknownPlugin)
		}
		version, err := plugin.ResolveSentinel(enabled.Version, def)
		if err != nil {
			return nil, err
		}
		enabled.Version = version
		resolved[name] = enabled
	}
	return resolved, nil
}

// EnabledSlice returns enabled in the deterministic name order
// planner.Input.RawEnabled expects for its own merge-duplicates step.
func EnabledSlice(enabled map[string]plugin.Enabled) []plugin.Enabled {
	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]plugin.Enabled, 0, len(enabled))
	for _, name := range names {
		out = append(out, enabled[name])
	}
	return out
}

// ToolResolver returns an executor.ToolResolver closing over enabled's
// resolved versions and this Project's indexed tool.Specs. enabled should
// be the map ResolveEnabled returned, so runtime tools (named by a
// Definition's Runtime field rather than appearing in enabled directly)
// still resolve: their Spec carries no activation-specific fields, so an
// empty Version/PackageFile is correct for them.
func (p *Project) ToolResolver(enabled map[string]plugin.Enabled) executor.ToolResolver {
	return func(name string) (*tool.Tool, bool) {
		spec, ok := p.toolSpecs[name]
		if !ok {
			return nil, false
		}
		if act, ok := enabled[name]; ok {
			spec.Version = act.Version
			if len(act.ExtraPackages) > 0 {
				spec.ExtraPackages = act.ExtraPackages
			}
			if act.PackageFile != "" {
				spec.PackageFile = act.PackageFile
				spec.PackageFilters = act.PackageFilters
			}
		}
		return tool.New(spec, p.cacheDir), true
	}
}

// EnsureQltyDir creates the .qlty working directories a run needs.
func (p *Project) EnsureQltyDir() error {
	return os.MkdirAll(p.QltyDir, 0o755)
}
