package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

// KeyInput gathers the inputs §4.6 names as feeding one target file's cache
// key: the installed tool's identity, the driver invoked, and the contents
// of every file whose bytes could change that driver's output for this
// target.
type KeyInput struct {
	ToolFingerprint   string
	DriverName        string
	DriverVersion     string
	TargetPath        string
	ConfigFilePaths   []string // in declaration order
	AffectsCachePaths []string // in declaration order
}

// ComputeKey hashes KeyInput's fields, in the order §4.6 specifies, into a
// cache fingerprint. Unlike the Tool fingerprint (internal/fingerprint),
// this key also folds in target and config file *contents*, since the same
// tool can legitimately produce different output for different inputs.
func ComputeKey(in KeyInput) (string, error) {
	h := sha256.New()
	h.Write([]byte(in.ToolFingerprint))
	h.Write([]byte(in.DriverName))
	h.Write([]byte(in.DriverVersion))

	if err := hashFile(h, in.TargetPath); err != nil {
		return "", err
	}
	for _, p := range in.ConfigFilePaths {
		if err := hashFile(h, p); err != nil {
			return "", err
		}
	}
	for _, p := range in.AffectsCachePaths {
		if err := hashFile(h, p); err != nil {
			return "", err
		}
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:6]), nil
}

func hashFile(h io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return qerrors.Wrap(qerrors.CategoryCache, "failed to read file for cache key", err).
			WithCode(qerrors.CodeCacheIO).WithDetail("path", path)
	}
	_, err = h.Write(data)
	return err
}
