package source

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/qlty-sh/qlty-core/internal/plugin"
	"github.com/qlty-sh/qlty-core/internal/qerrors"
	"github.com/qlty-sh/qlty-core/internal/tool"
	"github.com/qlty-sh/qlty-core/internal/tool/checksum"
)

// Loaded bundles one plugin source file's two products: the core
// plugin.Definition the Planner consumes, and the tool.Spec describing how
// to provision the plugin's underlying binary. They're parsed from the same
// file because a plugin author declares both in one place, but the core
// keeps them as separate types (plugin.Definition has no notion of install
// mechanics; tool.Spec has no notion of drivers or file types).
type Loaded struct {
	Definition plugin.Definition
	Tool       tool.Spec
}

// tomlDefinition is the on-disk plugin definition file shape, e.g.
// .qlty/sources/default/linters/rubocop/plugin.toml.
type tomlDefinition struct {
	Name                       string              `toml:"name"`
	LatestVersion              string              `toml:"latest_version"`
	KnownGoodVersion           string              `toml:"known_good_version"`
	Runtime                    string              `toml:"runtime"`
	ConfigFiles                []string            `toml:"config_files"`
	ExportedConfigPaths        []string            `toml:"exported_config_paths"`
	AffectsCache               []string            `toml:"affects_cache"`
	PackageFile                string              `toml:"package_file"`
	PackageFilters             []string            `toml:"package_filters"`
	ExtraPackages              []tomlExtraPackage  `toml:"extra_packages"`
	Fetch                      []tomlFetch         `toml:"fetch"`
	FileTypes                  []string            `toml:"file_types"`
	PackageFileCandidate       string              `toml:"package_file_candidate"`
	PackageFileCandidateFilter []string            `toml:"package_file_candidate_filter"`
	Environment                []tomlEnvEntry      `toml:"environment"`
	Drivers                    []tomlDriver        `toml:"drivers"`
	Tool                       tomlToolSpec        `toml:"tool"`
}

type tomlFetch struct {
	URL  string `toml:"url"`
	Path string `toml:"path"`
}

type tomlEnvEntry struct {
	Name   string `toml:"name"`
	Value  string `toml:"value"`
	IsPATH bool   `toml:"is_path"`
}

type tomlDriver struct {
	Name            string   `toml:"name"`
	Verb            string   `toml:"verb"`
	ScriptTpl       string   `toml:"script"`
	SuccessCodes    []int    `toml:"success_codes"`
	ErrorCodes      []int    `toml:"error_codes"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	PrepareScript   string   `toml:"prepare_script"`
	InvocationLabel string   `toml:"invocation_label"`
}

// tomlToolSpec is the install-mechanics sub-table. Kind is inferred from
// which fields are populated rather than named explicitly, the way the
// plugin author fills in exactly one of [tool.download], [tool.github_release]
// or [tool.runtime_package] and leaves the others empty.
type tomlToolSpec struct {
	PackageName       string             `toml:"package_name"`
	VersionCommand    []string           `toml:"version_command"`
	VersionRegex      string             `toml:"version_regex"`
	InstallMaxRetries int                `toml:"install_max_retries"`

	Download       *tomlDownloadSpec       `toml:"download"`
	GitHubRelease  *tomlGitHubReleaseSpec  `toml:"github_release"`
	RuntimePackage *tomlRuntimePackageSpec `toml:"runtime_package"`
	Runtime        *tomlRuntimeSpec        `toml:"runtime"`
}

// tomlRuntimeSpec marks a definition as the runtime itself (e.g. ruby,
// node), distinct from RuntimePackage which installs a package against an
// already-provisioned runtime.
type tomlRuntimeSpec struct {
	InstallCommands []string `toml:"install_commands"`
}

type tomlDownloadSpec struct {
	URLs            map[string]string `toml:"urls"`
	ChecksumValue   string            `toml:"checksum"`
	ChecksumURL     string            `toml:"checksum_url"`
	ArchiveType     string            `toml:"archive_type"`
	StripComponents int               `toml:"strip_components"`
	BinaryName      string            `toml:"binary_name"`
}

type tomlGitHubReleaseSpec struct {
	Owner     string `toml:"owner"`
	Repo      string `toml:"repo"`
	TagPrefix string `toml:"tag_prefix"`
}

type tomlRuntimePackageSpec struct {
	InstallCommands     []string `toml:"install_commands"`
	PackageFileCommands []string `toml:"package_file_commands"`
}

type tomlExtraPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// LoadDefinition decodes one plugin definition file (TOML only; YAML
// definition files are indexed by DefinitionFiles for discovery but plugin
// authoring in this ecosystem is TOML, per spec.md §9's decoder commitment).
func LoadDefinition(path string) (Loaded, error) {
	var raw tomlDefinition
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return Loaded{}, qerrors.Wrap(qerrors.CategoryConfig, "failed to parse plugin definition", err).WithDetail("path", path)
	}
	if raw.Name == "" {
		return Loaded{}, qerrors.New(qerrors.CategoryConfig, "plugin definition missing name").WithDetail("path", path)
	}

	def := plugin.Definition{
		Name:                       raw.Name,
		LatestVersion:              raw.LatestVersion,
		KnownGoodVersion:           raw.KnownGoodVersion,
		Runtime:                    raw.Runtime,
		ConfigFiles:                raw.ConfigFiles,
		ExportedConfigPaths:        raw.ExportedConfigPaths,
		AffectsCache:               raw.AffectsCache,
		PackageFile:                raw.PackageFile,
		PackageFilters:             raw.PackageFilters,
		FileTypes:                  raw.FileTypes,
		PackageFileCandidate:       raw.PackageFileCandidate,
		PackageFileCandidateFilter: raw.PackageFileCandidateFilter,
	}
	for _, ep := range raw.ExtraPackages {
		def.ExtraPackages = append(def.ExtraPackages, plugin.ExtraPackage{Name: ep.Name, Version: ep.Version})
	}
	for _, f := range raw.Fetch {
		def.Fetch = append(def.Fetch, plugin.FetchDirective{URL: f.URL, Path: f.Path})
	}
	for _, e := range raw.Environment {
		def.Environment = append(def.Environment, plugin.EnvEntry{Name: e.Name, Value: e.Value, IsPATH: e.IsPATH})
	}
	for _, d := range raw.Drivers {
		def.Drivers = append(def.Drivers, plugin.Driver{
			Name:            d.Name,
			Verb:            d.Verb,
			ScriptTpl:       d.ScriptTpl,
			SuccessCodes:    d.SuccessCodes,
			ErrorCodes:      d.ErrorCodes,
			TimeoutSeconds:  d.TimeoutSeconds,
			PrepareScript:   d.PrepareScript,
			InvocationLabel: d.InvocationLabel,
		})
	}

	spec, err := buildToolSpec(raw)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{Definition: def, Tool: spec}, nil
}

func buildToolSpec(raw tomlDefinition) (tool.Spec, error) {
	spec := tool.Spec{
		Name:              raw.Name,
		PackageName:       raw.Tool.PackageName,
		VersionCommand:    raw.Tool.VersionCommand,
		VersionRegex:      raw.Tool.VersionRegex,
		InstallMaxRetries: raw.Tool.InstallMaxRetries,
		PackageFile:       raw.PackageFile,
		PackageFilters:    raw.PackageFilters,
	}
	for _, ep := range raw.ExtraPackages {
		spec.ExtraPackages = append(spec.ExtraPackages, plugin.ExtraPackage{Name: ep.Name, Version: ep.Version})
	}
	for _, e := range raw.Environment {
		spec.Env = append(spec.Env, plugin.EnvEntry{Name: e.Name, Value: e.Value, IsPATH: e.IsPATH})
	}

	switch {
	case raw.Tool.Download != nil:
		spec.Kind = tool.KindDownload
		d := raw.Tool.Download
		spec.Download = &tool.DownloadDef{
			URLs:            d.URLs,
			ArchiveType:     d.ArchiveType,
			StripComponents: d.StripComponents,
			BinaryName:      d.BinaryName,
		}
		if d.ChecksumValue != "" || d.ChecksumURL != "" {
			spec.Download.Checksum = &checksum.Spec{Value: d.ChecksumValue, URL: d.ChecksumURL}
		}
	case raw.Tool.GitHubRelease != nil:
		spec.Kind = tool.KindGitHubRelease
		g := raw.Tool.GitHubRelease
		if g.Owner == "" || g.Repo == "" {
			return tool.Spec{}, fmt.Errorf("plugin %q: github_release requires owner and repo", raw.Name)
		}
		spec.GitHubRelease = &tool.GitHubReleaseDef{Owner: g.Owner, Repo: g.Repo, TagPrefix: g.TagPrefix}
	case raw.Tool.RuntimePackage != nil:
		spec.Kind = tool.KindRuntimePackage
		spec.PackageInstallCommands = raw.Tool.RuntimePackage.InstallCommands
		spec.PackageFileInstallCmds = raw.Tool.RuntimePackage.PackageFileCommands
	case raw.Tool.Runtime != nil:
		spec.Kind = tool.KindRuntime
		spec.RuntimeInstallCommands = raw.Tool.Runtime.InstallCommands
	default:
		// No install mechanics declared: the plugin expects its binary to
		// already be on PATH (a NullTool per internal/tool's five variants).
		spec.Kind = tool.KindNull
	}

	return spec, nil
}
