package scm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/byte4ever/trychange/exec"
	"github.com/byte4ever/trychange/tryerr"
)

// Params carries the caller-supplied inputs a diff source may
// use or resolve on demand.
type Params struct {
	// Files is an explicit list of files to include, relative
	// to the checkout root. May be empty.
	Files []string

	// Email is the address results are reported to. Resolved
	// from the backend when empty.
	Email string

	// Name is the descriptive job name. The git backend
	// derives one from the branch when empty.
	Name string
}

// Source produces a normalized diff of pending local changes
// plus the metadata a submission needs.
//
// Pattern: Strategy -- swap version control backend without
// changing the submission pipeline.
type Source interface {
	// Diff returns the unified diff of pending changes. It is
	// generated at most once and cached for the rest of the
	// run.
	Diff() (string, error)

	// Email returns the author address, resolving it from the
	// backend when the caller supplied none. Empty when no
	// address could be resolved.
	Email() (string, error)

	// LocalRoot returns the absolute checkout root path.
	LocalRoot() string

	// Files returns the file list the diff covers.
	Files() []string

	// JobName returns the job name, derived from backend
	// state when the caller supplied none. Empty when the
	// backend has nothing to derive it from.
	JobName() (string, error)
}

// Detect inspects dir and returns the diff source for the
// version control system governing it. The subversion marker
// is checked first and wins when both backends are present. A
// missing git binary counts as "not detected"; any other probe
// failure propagates.
func Detect(dir string, params Params) (Source, error) {
	const errCtx = "detecting version control system"

	marker := filepath.Join(dir, ".svn")
	if fi, err := os.Stat(marker); err == nil && fi.IsDir() {
		slog.Info("detected vcs", "vcs", "subversion")

		src, err := NewSubversion(dir, params)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return src, nil
	}

	out, err := exec.Ex(
		dir, "git",
		"rev-parse", "--is-inside-work-tree",
	)

	switch {
	case err == nil &&
		strings.TrimSpace(out) == "true":
		slog.Info("detected vcs", "vcs", "git")

		src, err := NewGit(dir, params)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return src, nil

	case err != nil && exec.IsNotInstalled(err):
		// No git binary: fall through to "not detected".

	case err != nil:
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil, tryerr.NoAccessf(
		"could not determine version control system, " +
			"are you in a working copy directory?",
	)
}
