package githubrelease

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Asset is one downloadable file attached to a GitHub release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Release is the subset of the GitHub Releases API response this package
// needs.
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// GetLatestRelease fetches the latest release's tag, trimming tagPrefix
// (e.g. "bun-v" from "bun-v1.2.3").
func GetLatestRelease(ctx context.Context, client *http.Client, owner, repo, tagPrefix string) (string, error) {
	rel, err := fetch(ctx, client, fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", owner, repo))
	if err != nil {
		return "", err
	}
	if rel.TagName == "" {
		return "", fmt.Errorf("empty tag_name in latest release for %s/%s", owner, repo)
	}
	return strings.TrimPrefix(rel.TagName, tagPrefix), nil
}

// GetReleaseByTag fetches the release assets for version, retrying with a
// "v"-prefixed tag if the bare version 404s and vice versa — real-world
// GitHub projects are inconsistent about the prefix.
func GetReleaseByTag(ctx context.Context, client *http.Client, owner, repo, version string) (*Release, error) {
	if err := validateOwnerRepo(owner, repo); err != nil {
		return nil, err
	}

	candidates := []string{version}
	if strings.HasPrefix(version, "v") {
		candidates = append(candidates, strings.TrimPrefix(version, "v"))
	} else {
		candidates = append(candidates, "v"+version)
	}

	var lastErr error
	for _, tag := range candidates {
		rel, err := fetch(ctx, client, fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/tags/%s", owner, repo, tag))
		if err == nil {
			return rel, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no release found for %s/%s at version %q: %w", owner, repo, version, lastErr)
}

func validateOwnerRepo(owner, repo string) error {
	if strings.Contains(owner, "/") || strings.Contains(repo, "/") {
		return fmt.Errorf("invalid owner %q or repo %q: must not contain '/'", owner, repo)
	}
	if owner == "" || repo == "" {
		return fmt.Errorf("owner and repo must not be empty")
	}
	return nil
}

func fetch(ctx context.Context, client *http.Client, url string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d for %s", resp.StatusCode, url)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode release response: %w", err)
	}
	return &rel, nil
}
