package scm_test

import (
	"os"
	oe "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/trychange/scm"
	"github.com/byte4ever/trychange/tryerr"
)

func TestRewriteAddedFileHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "added file rewritten",
			in: "--- /dev/null\n" +
				"+++ src/new.cc\n" +
				"@@ -0,0 +1 @@\n" +
				"+int x;\n",
			want: "--- src/new.cc\n" +
				"+++ src/new.cc\n" +
				"@@ -0,0 +1 @@\n" +
				"+int x;\n",
		},
		{
			name: "modified file untouched",
			in: "--- src/old.cc\n" +
				"+++ src/old.cc\n" +
				"@@ -1 +1 @@\n" +
				"-int x;\n" +
				"+int y;\n",
			want: "--- src/old.cc\n" +
				"+++ src/old.cc\n" +
				"@@ -1 +1 @@\n" +
				"-int x;\n" +
				"+int y;\n",
		},
		{
			name: "mixed hunks in any order",
			in: "--- src/old.cc\n" +
				"+++ src/old.cc\n" +
				"@@ -1 +1 @@\n" +
				"-a\n" +
				"+b\n" +
				"--- /dev/null\n" +
				"+++ added.h\n" +
				"@@ -0,0 +1 @@\n" +
				"+x\n",
			want: "--- src/old.cc\n" +
				"+++ src/old.cc\n" +
				"@@ -1 +1 @@\n" +
				"-a\n" +
				"+b\n" +
				"--- added.h\n" +
				"+++ added.h\n" +
				"@@ -0,0 +1 @@\n" +
				"+x\n",
		},
		{
			name: "null header without pair untouched",
			in:   "--- /dev/null\n",
			want: "--- /dev/null\n",
		},
		{
			name: "empty diff",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := scm.RewriteAddedFileHeadersForTest(
				tt.in,
			)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewGit_root_from_subdir(t *testing.T) {
	t.Parallel()

	requireGit(t)

	dir := t.TempDir()
	initGitRepo(t, dir)

	sub := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	src, err := scm.NewGit(sub, scm.Params{})

	require.NoError(t, err)
	assert.Equal(
		t, resolvePath(t, dir), resolvePath(
			t, src.LocalRoot(),
		),
	)
}

func TestGit_job_name_from_branch(t *testing.T) {
	t.Parallel()

	requireGit(t)

	dir := t.TempDir()
	initGitRepo(t, dir)
	gitCmd(t, dir, "checkout", "-b", "fix-widget")

	src, err := scm.NewGit(dir, scm.Params{})
	require.NoError(t, err)

	name, err := src.JobName()
	require.NoError(t, err)
	assert.Equal(t, "fix-widget", name)
}

func TestGit_job_name_detached(t *testing.T) {
	t.Parallel()

	requireGit(t)

	dir := t.TempDir()
	initGitRepo(t, dir)
	gitCmd(t, dir, "checkout", "--detach")

	src, err := scm.NewGit(dir, scm.Params{})
	require.NoError(t, err)

	_, err = src.JobName()

	var na *tryerr.NoAccessError

	require.ErrorAs(t, err, &na)
	assert.Contains(t, na.Reason, "branch name")
}

func TestGit_job_name_explicit_wins(t *testing.T) {
	t.Parallel()

	requireGit(t)

	dir := t.TempDir()
	initGitRepo(t, dir)
	gitCmd(t, dir, "checkout", "--detach")

	src, err := scm.NewGit(dir, scm.Params{
		Name: "given",
	})
	require.NoError(t, err)

	name, err := src.JobName()
	require.NoError(t, err)
	assert.Equal(t, "given", name)
}

func TestGit_email_from_config(t *testing.T) {
	t.Parallel()

	requireGit(t)

	dir := t.TempDir()
	initGitRepo(t, dir)

	src, err := scm.NewGit(dir, scm.Params{})
	require.NoError(t, err)

	email, err := src.Email()
	require.NoError(t, err)
	assert.Equal(t, "test@test.com", email)
}

func TestGit_diff_against_upstream(t *testing.T) {
	t.Parallel()

	requireGit(t)

	dir := t.TempDir()
	initGitRepo(t, dir)

	// Branch off main, track it, and add a new file so
	// the diff carries an added-file hunk.
	gitCmd(t, dir, "checkout", "-b", "feature")
	gitCmd(
		t, dir, "branch",
		"--set-upstream-to=main", "feature",
	)

	fp := filepath.Join(dir, "added.txt")
	require.NoError(t, os.WriteFile(
		fp, []byte("fresh\n"), 0o600,
	))
	gitCmd(t, dir, "add", "added.txt")
	gitCmd(t, dir, "commit", "-m", "add file")

	src, err := scm.NewGit(dir, scm.Params{})
	require.NoError(t, err)

	diff, err := src.Diff()
	require.NoError(t, err)

	assert.Contains(t, diff, "+++ added.txt")
	assert.Contains(t, diff, "--- added.txt")
	assert.NotContains(t, diff, "/dev/null")
	assert.Contains(t, diff, "+fresh")

	// The diff is cached for the rest of the run.
	again, err := src.Diff()
	require.NoError(t, err)
	assert.Equal(t, diff, again)
}

func TestDetect_prefers_subversion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(
		filepath.Join(dir, ".svn"), 0o750,
	))
	require.NoError(t, os.MkdirAll(
		filepath.Join(dir, ".git"), 0o750,
	))

	src, err := scm.Detect(dir, scm.Params{})

	require.NoError(t, err)
	assert.IsType(t, &scm.Subversion{}, src)
}

func TestDetect_git_work_tree(t *testing.T) {
	t.Parallel()

	requireGit(t)

	dir := t.TempDir()
	initGitRepo(t, dir)

	src, err := scm.Detect(dir, scm.Params{})

	require.NoError(t, err)
	assert.IsType(t, &scm.Git{}, src)
}

func TestDetect_nothing(t *testing.T) {
	t.Parallel()

	_, err := scm.Detect(t.TempDir(), scm.Params{})

	assert.Error(t, err)
}

// requireGit skips the test when no git binary is on PATH.
func requireGit(tb testing.TB) {
	tb.Helper()

	if _, err := oe.LookPath("git"); err != nil {
		tb.Skip("git not installed")
	}
}

// resolvePath resolves symlinks so paths under /tmp compare
// stably across platforms.
func resolvePath(tb testing.TB, path string) string {
	tb.Helper()

	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(tb, err)

	return resolved
}

// initGitRepo creates a git repository with one initial
// commit on a "main" branch. Hooks are disabled to avoid
// interference from pre-commit hooks.
func initGitRepo(tb testing.TB, dir string) {
	tb.Helper()

	cmds := [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test"},
		{"config", "core.hooksPath", "/dev/null"},
		{"config", "commit.gpgsign", "false"},
	}

	for _, args := range cmds {
		gitCmd(tb, dir, args...)
	}

	fp := filepath.Join(dir, "base.txt")
	require.NoError(tb, os.WriteFile(
		fp, []byte("base\n"), 0o600,
	))

	gitCmd(tb, dir, "add", "base.txt")
	gitCmd(tb, dir, "commit", "-m", "initial")
}

// gitCmd runs git with args in dir and fails the test on
// error.
func gitCmd(
	tb testing.TB,
	dir string,
	args ...string,
) {
	tb.Helper()

	cmd := oe.Command("git", args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	require.NoError(
		tb, err, "git %v: %s", args, string(out),
	)
}
