// Package fingerprint computes the stable content hash that identifies a
// tool's install. Two Tools with the same fingerprint are guaranteed to
// produce the same install contents; any change to an input that could
// change the installed artifact changes the fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Fingerprint is a 12-lowercase-hex-character identity derived from the
// first 6 bytes of a SHA-256 digest.
type Fingerprint string

// Package describes the name/version pair hashed for a tool's primary
// package and each of its extra packages.
type Package struct {
	Name    string
	Version string
}

// Input is the set of fields that feed a tool's fingerprint, mirroring the
// byte stream order the spec defines:
//
//  1. The runtime's fingerprint, if this tool depends on one (recursive).
//  2. The primary package's name and version.
//  3. Extra packages, sorted by name: name then version, each.
//  4. The full textual contents of the declared package_file, if any.
//  5. Each package_filter string, in declaration order.
type Input struct {
	RuntimeFingerprint Fingerprint
	Package            Package
	ExtraPackages      []Package
	PackageFile        string
	PackageFilters     []string
}

// Compute derives the Fingerprint for in, following the byte-stream order
// the spec mandates. Extra packages are sorted by name before hashing so
// declaration order never affects the result.
func Compute(in Input) Fingerprint {
	h := sha256.New()

	if in.RuntimeFingerprint != "" {
		h.Write([]byte(in.RuntimeFingerprint))
	}

	h.Write([]byte(in.Package.Name))
	h.Write([]byte(in.Package.Version))

	extras := make([]Package, len(in.ExtraPackages))
	copy(extras, in.ExtraPackages)
	sort.Slice(extras, func(i, j int) bool { return extras[i].Name < extras[j].Name })
	for _, p := range extras {
		h.Write([]byte(p.Name))
		h.Write([]byte(p.Version))
	}

	if in.PackageFile != "" {
		h.Write([]byte(in.PackageFile))
	}

	for _, filter := range in.PackageFilters {
		h.Write([]byte(filter))
	}

	sum := h.Sum(nil)
	return Fingerprint(hex.EncodeToString(sum[:6]))
}

// String satisfies fmt.Stringer.
func (f Fingerprint) String() string {
	return string(f)
}

// Empty reports whether f is the zero value.
func (f Fingerprint) Empty() bool {
	return f == ""
}
