// Package lockfile implements the scoped, cross-process advisory lock that
// serializes concurrent setup() calls on the same tool install directory.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/qlty-sh/qlty-core/internal/qerrors"
)

const pollInterval = 25 * time.Millisecond

// doneSuffix names the marker file written on successful install
// completion, as a sibling of the install directory: "<dir>.done". Its
// presence means setup() can be skipped entirely.
const doneSuffix = ".done"

// Lockfile guards a single install directory. It is not safe to share a
// Lockfile value across directories; construct one per directory.
type Lockfile struct {
	dir      string
	donePath string
	lockPath string
	fl       *flock.Flock
}

// New returns a Lockfile for the given install directory. The lock itself is
// held in a sibling "<dir>.lock" file, and the done marker in a sibling
// "<dir>.done" file, so the install directory itself can be wiped and
// recreated without disturbing either.
func New(dir string) *Lockfile {
	return &Lockfile{
		dir:      dir,
		donePath: dir + doneSuffix,
		lockPath: dir + ".lock",
		fl:       flock.New(dir + ".lock"),
	}
}

// Release unlocks a previously acquired Lockfile. Call it via defer
// immediately after a successful Lock to guarantee release on every exit
// path, including panics.
type Release func()

// Lock blocks until the advisory lock is acquired or ctx is canceled. On
// success it records the holder's PID in the lock file (for diagnostics) and
// returns a Release function; the caller must defer it.
func (l *Lockfile) Lock(ctx context.Context) (Release, error) {
	if err := os.MkdirAll(filepath.Dir(l.lockPath), 0o755); err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryInstall, "failed to prepare lock directory", err)
	}

	locked, err := l.fl.TryLockContext(ctx, pollInterval)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CategoryInstall, "failed to acquire install lock", err).
			WithCode(qerrors.CodeLockTimeout).
			WithDetail("dir", l.dir)
	}
	if !locked {
		pid, _ := l.readHolderPID()
		msg := "another process holds the install lock"
		if pid > 0 {
			msg = fmt.Sprintf("another process (PID %d) holds the install lock", pid)
		}
		return nil, qerrors.New(qerrors.CategoryInstall, msg).
			WithCode(qerrors.CodeLockTimeout).
			WithDetail("dir", l.dir)
	}

	if err := l.writeHolderPID(); err != nil {
		_ = l.fl.Unlock()
		return nil, qerrors.Wrap(qerrors.CategoryInstall, "failed to record lock holder", err)
	}

	return func() { _ = l.fl.Unlock() }, nil
}

// IsInstalled reports whether the guarded directory already holds a
// completed install: the done marker exists and the directory itself is
// present. Callers check this immediately after acquiring the lock so a
// racing setup() from another process is observed before reinstalling.
func (l *Lockfile) IsInstalled() bool {
	if _, err := os.Stat(l.dir); err != nil {
		return false
	}
	if _, err := os.Stat(l.donePath); err != nil {
		return false
	}
	return true
}

// MarkInstalled writes the done marker, signaling install completion to any
// future holder of this Lockfile.
func (l *Lockfile) MarkInstalled() error {
	if err := os.WriteFile(l.donePath, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		return qerrors.Wrap(qerrors.CategoryInstall, "failed to write done marker", err)
	}
	return nil
}

func (l *Lockfile) readHolderPID() (int, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

func (l *Lockfile) writeHolderPID() error {
	return os.WriteFile(l.lockPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
