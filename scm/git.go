package scm

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/byte4ever/trychange/exec"
	"github.com/byte4ever/trychange/tryerr"
)

// Git gathers the diff and author identity for a git checkout.
// The diff always covers the whole tree between the tracking
// reference and HEAD; an explicit file list is deliberately
// ignored by this backend.
type Git struct {
	params Params
	root   string

	diffed  bool
	diff    string
	diffErr error
}

// branchRefPrefix is the ref namespace of named local
// branches.
const branchRefPrefix = "refs/heads/"

// NewGit resolves the checkout root governing dir and returns
// a source for it.
func NewGit(dir string, params Params) (*Git, error) {
	const errCtx = "opening git checkout"

	out, err := exec.Ex(
		dir, "git", "rev-parse", "--show-cdup",
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	root, err := filepath.Abs(
		filepath.Join(dir, strings.TrimSpace(out)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &Git{
		params: params,
		root:   root,
	}, nil
}

// LocalRoot returns the absolute checkout root path.
func (g *Git) LocalRoot() string {
	return g.root
}

// Files returns the caller-supplied file list. It plays no
// part in diff generation for this backend.
func (g *Git) Files() []string {
	return g.params.Files
}

// Diff returns the whole-tree diff between the tracking
// reference and HEAD. Generated at most once, then cached.
func (g *Git) Diff() (string, error) {
	if g.diffed {
		return g.diff, g.diffErr
	}

	g.diffed = true
	g.diff, g.diffErr = g.generateDiff()

	return g.diff, g.diffErr
}

// Email returns the caller-supplied address, falling back to
// the configured git identity. A missing configuration entry
// yields an empty address, not an error.
func (g *Git) Email() (string, error) {
	if g.params.Email != "" {
		return g.params.Email, nil
	}

	out, err := exec.Ex(
		g.root, "git", "config", "user.email",
	)
	if err != nil {
		return "", nil
	}

	return strings.TrimSpace(out), nil
}

// JobName returns the caller-supplied name, or derives one
// from the current symbolic branch. A detached HEAD cannot
// name the job and fails.
func (g *Git) JobName() (string, error) {
	const errCtx = "deriving job name"

	if g.params.Name != "" {
		return g.params.Name, nil
	}

	out, err := exec.Ex(
		g.root, "git", "symbolic-ref", "HEAD",
	)
	if err != nil {
		return "", tryerr.NoAccessf(
			"could not figure out branch name",
		)
	}

	ref := strings.TrimSpace(out)
	if !strings.HasPrefix(ref, branchRefPrefix) {
		return "", tryerr.NoAccessf(
			"could not figure out branch name",
		)
	}

	name := strings.TrimPrefix(ref, branchRefPrefix)

	if name == "" {
		return "", fmt.Errorf(
			"%s: empty branch name in %q", errCtx, ref,
		)
	}

	return name, nil
}

// generateDiff diffs the tracking reference against HEAD and
// rewrites added-file headers for patch tool consumption.
func (g *Git) generateDiff() (string, error) {
	const errCtx = "generating git diff"

	upstream, err := exec.Ex(
		g.root, "git",
		"rev-parse", "--abbrev-ref",
		"--symbolic-full-name", "@{upstream}",
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: find tracking ref: %w", errCtx, err,
		)
	}

	out, err := exec.Ex(
		g.root, "git",
		"diff-tree", "-p", "--no-prefix",
		strings.TrimSpace(upstream), "HEAD",
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return rewriteAddedFileHeaders(out), nil
}

// rewriteAddedFileHeaders rewrites the removed-side header of
// every newly added file so both sides of the hunk name the
// added path. Textual patch tools otherwise see /dev/null as
// the old path and mispair the headers.
func rewriteAddedFileHeaders(diff string) string {
	const (
		nullHeader  = "--- /dev/null"
		addedHeader = "+++ "
	)

	lines := strings.SplitAfter(diff, "\n")

	for i, line := range lines {
		if !strings.HasPrefix(line, nullHeader) {
			continue
		}

		if i+1 >= len(lines) ||
			!strings.HasPrefix(
				lines[i+1], addedHeader,
			) {
			continue
		}

		lines[i] = "--- " +
			lines[i+1][len(addedHeader):]
	}

	return strings.Join(lines, "")
}
