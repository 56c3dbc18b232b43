// Package extract extracts downloaded archives into a tool's install
// directory, guarding against path traversal and skipping OS metadata
// entries injected by some archive tools.
package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// ArchiveType names a supported archive format.
type ArchiveType string

const (
	ArchiveTypeTarGz ArchiveType = "tar.gz"
	ArchiveTypeZip    ArchiveType = "zip"
	ArchiveTypeTarXz ArchiveType = "tar.xz"
	// ArchiveTypeRaw is a single uncompressed binary, as GitHub releases
	// sometimes publish (e.g. "jq-linux-amd64" with no archive wrapper).
	ArchiveTypeRaw ArchiveType = "raw"
)

// Normalize maps common extension aliases onto a canonical ArchiveType.
// Unrecognized values pass through unchanged; NewExtractor then rejects them.
func Normalize(raw string) ArchiveType {
	switch strings.ToLower(raw) {
	case "tar.gz", "tgz":
		return ArchiveTypeTarGz
	case "tar.xz", "txz":
		return ArchiveTypeTarXz
	case "zip":
		return ArchiveTypeZip
	case "raw":
		return ArchiveTypeRaw
	default:
		return ArchiveType(raw)
	}
}

// Detect infers the archive type from a URL or filename's suffix, returning
// "" when no known compound extension matches.
func Detect(urlOrFilename string) ArchiveType {
	base := filepath.Base(urlOrFilename)
	switch {
	case strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".tgz"):
		return ArchiveTypeTarGz
	case strings.HasSuffix(base, ".tar.xz"), strings.HasSuffix(base, ".txz"):
		return ArchiveTypeTarXz
	case strings.HasSuffix(base, ".zip"):
		return ArchiveTypeZip
	default:
		return ""
	}
}

// Extractor unpacks an archive from r into destDir.
type Extractor interface {
	Extract(r io.Reader, destDir string) error
}

// New returns the Extractor for the given archive type.
func New(archiveType ArchiveType) (Extractor, error) {
	switch archiveType {
	case ArchiveTypeTarGz:
		return tarGzExtractor{}, nil
	case ArchiveTypeTarXz:
		return tarXzExtractor{}, nil
	case ArchiveTypeZip:
		return zipExtractor{}, nil
	case ArchiveTypeRaw:
		return rawExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", archiveType)
	}
}

type tarGzExtractor struct{}

func (tarGzExtractor) Extract(r io.Reader, destDir string) error {
	slog.Debug("extracting tar.gz", "dest", destDir)
	gr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()
	return extractTar(gr, destDir)
}

type tarXzExtractor struct{}

func (tarXzExtractor) Extract(r io.Reader, destDir string) error {
	slog.Debug("extracting tar.xz", "dest", destDir)
	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("xz reader: %w", err)
	}
	return extractTar(xr, destDir)
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar header: %w", err)
		}

		target := filepath.Join(destDir, hdr.Name)
		if !isInsideDir(destDir, target) {
			return fmt.Errorf("archive entry escapes destination: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}
		case tar.TypeReg:
			if err := extractFile(tr, target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			linkTarget := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if !isInsideDir(destDir, linkTarget) {
				return fmt.Errorf("symlink escapes destination: %s -> %s", hdr.Name, hdr.Linkname)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("symlink: %w", err)
			}
		}
	}
	return nil
}

type zipExtractor struct{}

func (zipExtractor) Extract(r io.Reader, destDir string) error {
	slog.Debug("extracting zip", "dest", destDir)

	ra, ok := r.(io.ReaderAt)
	if !ok {
		return fmt.Errorf("zip extraction requires io.ReaderAt, got %T", r)
	}
	size, err := readerSize(r)
	if err != nil {
		return fmt.Errorf("reader size: %w", err)
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return fmt.Errorf("zip reader: %w", err)
	}

	for _, f := range zr.File {
		if isOSMetadataPath(f.Name) {
			continue
		}

		target := filepath.Join(destDir, f.Name)
		if !isInsideDir(destDir, target) {
			return fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open archive entry: %w", err)
		}
		err = extractFile(rc, target, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func readerSize(r io.Reader) (int64, error) {
	switch v := r.(type) {
	case *os.File:
		info, err := v.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	case interface{ Len() int }:
		return int64(v.Len()), nil
	case io.Seeker:
		current, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, err
		}
		size, err := v.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
		if _, err := v.Seek(current, io.SeekStart); err != nil {
			return 0, err
		}
		return size, nil
	default:
		return 0, fmt.Errorf("cannot determine size for %T", r)
	}
}

func extractFile(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// isOSMetadataPath skips the __MACOSX/ tree some zip tools inject.
func isOSMetadataPath(name string) bool {
	return name == "__MACOSX" || name == "__MACOSX/" || strings.HasPrefix(name, "__MACOSX/")
}

func isInsideDir(baseDir, target string) bool {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && len(rel) > 0 && rel[0] != '.'
}

type rawExtractor struct{}

// Extract writes r as the sole installed binary, named after destDir's base
// name (the tool name), with executable permissions.
func (rawExtractor) Extract(r io.Reader, destDir string) error {
	slog.Debug("extracting raw binary", "dest", destDir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	target := filepath.Join(destDir, filepath.Base(destDir))
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create binary: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write binary: %w", err)
	}
	return nil
}
