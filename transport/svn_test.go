package transport_test

import (
	"context"
	"os"
	oe "os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/trychange/payload"
	"github.com/byte4ever/trychange/transport"
	"github.com/byte4ever/trychange/tryerr"
)

func TestDiffFileName(t *testing.T) {
	t.Parallel()

	now := time.Date(
		2026, 8, 23, 14, 30, 5, 0, time.UTC,
	)

	got := transport.DiffFileNameForTest(
		"joe.user", "fix.widget", now,
	)

	assert.Equal(
		t,
		"joe-user.fix-widget.2026-08-23 14.30.05.diff",
		got,
	)
}

func TestDiffFileName_single_extension_dot(t *testing.T) {
	t.Parallel()

	now := time.Date(
		2026, 1, 2, 3, 4, 5, 0, time.UTC,
	)

	got := transport.DiffFileNameForTest(
		"joe", "Unnamed", now,
	)

	// Only the timestamp and the extension carry dots.
	re := regexp.MustCompile(
		`^joe\.Unnamed\.` +
			`\d{4}-\d{2}-\d{2} ` +
			`\d{2}\.\d{2}\.\d{2}\.diff$`,
	)
	assert.Regexp(t, re, got)
}

func TestEscapeDot(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"a-b-c",
		transport.EscapeDotForTest("a.b.c"),
	)
	assert.Equal(
		t, "plain", transport.EscapeDotForTest("plain"),
	)
}

func TestSVNSender_missing_repo(t *testing.T) {
	t.Parallel()

	s := transport.NewSVNSender(transport.Config{})

	err := s.Send(
		context.Background(), newTestValues(), "diff",
	)

	var na *tryerr.NoAccessError

	require.ErrorAs(t, err, &na)
	assert.Contains(t, na.Reason, "--svn_repo")
}

func TestSVNSender_cleans_up_on_failure(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()

	s := transport.NewSVNSender(transport.Config{
		SVNRepo: "svn://127.0.0.1:1/nonexistent",
		TmpDir:  tmp,
	})

	err := s.Send(
		context.Background(), newTestValues(), "diff",
	)
	require.Error(t, err)

	// Scratch checkout and message file are both gone.
	entries, readErr := os.ReadDir(tmp)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestSVNSender_commits_into_store(t *testing.T) {
	t.Parallel()

	requireSvn(t)

	repoDir := filepath.Join(t.TempDir(), "repo")
	svnAdmin(t, "create", repoDir)

	repoURL := "file://" + repoDir

	tmp := t.TempDir()

	s := transport.NewSVNSender(transport.Config{
		SVNRepo: repoURL,
		TmpDir:  tmp,
	})

	values := payload.New(payload.Params{
		User: "joe",
		Name: "fix-widget",
		Bots: []string{"linux"},
	})

	err := s.Send(
		context.Background(), values,
		"--- a.c\n+++ a.c\n",
	)
	require.NoError(t, err)

	// The store now holds exactly one diff file named
	// after user, job, and timestamp.
	out := svnCmd(t, "ls", repoURL)

	names := strings.Fields(strings.TrimSpace(out))
	require.Len(t, names, 1)
	assert.Regexp(
		t,
		`^joe\.fix-widget\..*\.diff$`,
		strings.TrimSpace(out),
	)

	// The commit message carries the payload as
	// key=value lines.
	log := svnCmd(t, "log", "-l", "1", repoURL)
	assert.Contains(t, log, "user=joe")
	assert.Contains(t, log, "name=fix-widget")
	assert.Contains(t, log, "bot=linux")

	// Scratch state is gone after a successful send too.
	entries, readErr := os.ReadDir(tmp)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestSVNSender_overwrites_existing(t *testing.T) {
	t.Parallel()

	requireSvn(t)

	repoDir := filepath.Join(t.TempDir(), "repo")
	svnAdmin(t, "create", repoDir)

	repoURL := "file://" + repoDir

	s := transport.NewSVNSender(transport.Config{
		SVNRepo: repoURL,
		TmpDir:  t.TempDir(),
	})

	// Pin the clock so both sends target the same name.
	fixed := time.Date(
		2026, 8, 23, 14, 30, 5, 0, time.UTC,
	)
	s.SetClockForTest(func() time.Time { return fixed })

	values := payload.New(payload.Params{
		User: "joe",
		Name: "fix-widget",
		Bots: []string{"linux"},
	})

	err := s.Send(
		context.Background(), values, "first diff\n",
	)
	require.NoError(t, err)

	err = s.Send(
		context.Background(), values, "second diff\n",
	)
	require.NoError(t, err)

	// Still a single store entry, holding the latest
	// content.
	out := svnCmd(t, "ls", repoURL)
	require.Len(
		t,
		strings.Fields(strings.TrimSpace(out)),
		1,
	)

	name := transport.DiffFileNameForTest(
		"joe", "fix-widget", fixed,
	)
	content := svnCmd(t, "cat", repoURL+"/"+name)
	assert.Equal(t, "second diff\n", content)
}

// requireSvn skips the test when the subversion tooling is
// not on PATH.
func requireSvn(tb testing.TB) {
	tb.Helper()

	for _, bin := range []string{"svn", "svnadmin"} {
		if _, err := oe.LookPath(bin); err != nil {
			tb.Skipf("%s not installed", bin)
		}
	}
}

// svnAdmin runs svnadmin and fails the test on error.
func svnAdmin(tb testing.TB, args ...string) {
	tb.Helper()

	out, err := oe.Command(
		"svnadmin", args...,
	).CombinedOutput()
	require.NoError(
		tb, err, "svnadmin %v: %s", args, string(out),
	)
}

// svnCmd runs svn and returns its output, failing the test
// on error.
func svnCmd(tb testing.TB, args ...string) string {
	tb.Helper()

	out, err := oe.Command(
		"svn", args...,
	).CombinedOutput()
	require.NoError(
		tb, err, "svn %v: %s", args, string(out),
	)

	return string(out)
}
