// Package download fetches and verifies the artifacts a Download or
// GitHubRelease Tool installs.
package download

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/qlty-sh/qlty-core/internal/tool/checksum"
)

// Downloader fetches a remote artifact and verifies its checksum.
type Downloader interface {
	// Fetch downloads url to destPath, returning the final path.
	Fetch(ctx context.Context, url, destPath string) (string, error)
	// Verify checks a downloaded file against spec; a nil spec or one with
	// neither Value nor URL set skips verification.
	Verify(ctx context.Context, filePath string, spec *checksum.Spec) error
}

type httpDownloader struct {
	client *http.Client
}

// New returns a Downloader backed by http.DefaultClient.
func New() Downloader {
	return &httpDownloader{client: http.DefaultClient}
}

func (d *httpDownloader) Fetch(ctx context.Context, url, destPath string) (string, error) {
	slog.Debug("downloading artifact", "url", url, "dest", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: HTTP %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close download: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("finalize download: %w", err)
	}

	slog.Debug("download complete", "path", destPath)
	return destPath, nil
}

func (d *httpDownloader) Verify(ctx context.Context, filePath string, spec *checksum.Spec) error {
	if spec == nil {
		return nil
	}

	var algorithm checksum.Algorithm
	var expected string

	switch {
	case spec.Value != "":
		alg, hash, err := checksum.Parse(spec.Value)
		if err != nil {
			return err
		}
		algorithm, expected = alg, hash
	case spec.URL != "":
		filename := filepath.Base(filePath)
		if spec.FilePattern != "" {
			filename = spec.FilePattern
		}
		alg, hash, err := d.fetchChecksumFromURL(ctx, spec.URL, filename)
		if err != nil {
			return err
		}
		algorithm, expected = alg, hash
	default:
		return nil
	}

	if err := checksum.Verify(filePath, algorithm, expected); err != nil {
		return err
	}
	slog.Debug("checksum verified", "algorithm", algorithm, "file", filePath)
	return nil
}

func (d *httpDownloader) fetchChecksumFromURL(ctx context.Context, url, filename string) (checksum.Algorithm, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("build checksum request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch checksum file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch checksum file: HTTP %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		hash, file := parseChecksumLine(line)
		if file == filename || filepath.Base(file) == filename {
			algorithm := checksum.DetectAlgorithm(hash)
			if algorithm == "" {
				return "", "", fmt.Errorf("cannot determine hash algorithm for %q", hash)
			}
			return algorithm, hash, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("read checksum file: %w", err)
	}
	return "", "", fmt.Errorf("checksum for %q not found in checksums file", filename)
}

// parseChecksumLine parses a "<hash>  <filename>" or BSD-style
// "<hash> *<filename>" checksums-file line.
func parseChecksumLine(line string) (hash, filename string) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], strings.TrimPrefix(parts[1], "*")
}
