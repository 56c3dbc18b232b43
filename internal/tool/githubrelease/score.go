package githubrelease

import (
	"runtime"
	"strings"
)

// archAliases maps a Go GOARCH value to the substrings release authors use
// for it in asset names.
var archAliases = map[string][]string{
	"amd64": {"x86_64", "amd64", "x64"},
	"arm64": {"aarch64", "arm64"},
}

// osAliases maps a Go GOOS value to the substrings release authors use for
// it in asset names.
var osAliases = map[string][]string{
	"linux":   {"linux"},
	"darwin":  {"darwin", "macos", "osx", "apple-darwin"},
	"windows": {"windows", "win"},
}

// excludedSubstrings mark an asset as unusable regardless of OS/CPU match:
// 32-bit builds, checksums, signatures, source archives.
var excludedSubstrings = []string{
	"386", "i386", "i686", "x86-", "armv6", "armv7",
	".sha256", ".sha512", ".sig", ".asc", ".sbom",
}

// archiveExtensionRank orders archive extensions from most to least
// preferred when two assets otherwise score equally.
var archiveExtensionRank = []string{".tar.gz", ".tgz", ".tar.xz", ".zip", ""}

// SelectAsset picks the best-matching asset for goos/goarch out of assets,
// or false if none qualify. goos/goarch normally come from runtime.GOOS and
// runtime.GOARCH but are parameters so tests can target other platforms.
func SelectAsset(assets []Asset, goos, goarch string) (Asset, bool) {
	var best Asset
	bestScore := -1
	found := false

	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if isExcluded(name) {
			continue
		}
		score, ok := scoreAsset(name, goos, goarch)
		if !ok {
			continue
		}
		if score > bestScore {
			best, bestScore, found = a, score, true
		}
	}
	return best, found
}

// SelectAssetForHost is SelectAsset using this process's OS/arch.
func SelectAssetForHost(assets []Asset) (Asset, bool) {
	return SelectAsset(assets, runtime.GOOS, runtime.GOARCH)
}

func isExcluded(name string) bool {
	for _, s := range excludedSubstrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// scoreAsset returns a higher-is-better score for name against goos/goarch,
// or false if it doesn't match both. Archive-extension preference breaks
// ties between otherwise-equal candidates.
func scoreAsset(name, goos, goarch string) (int, bool) {
	if !matchesAny(name, osAliases[goos]) {
		return 0, false
	}
	if !matchesAny(name, archAliases[goarch]) {
		return 0, false
	}

	score := 100
	for i, ext := range archiveExtensionRank {
		if ext == "" || strings.HasSuffix(name, ext) {
			score += len(archiveExtensionRank) - i
			break
		}
	}
	return score, true
}

func matchesAny(name string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}
