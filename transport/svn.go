package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/trychange/exec"
	"github.com/byte4ever/trychange/payload"
	"github.com/byte4ever/trychange/tryerr"
)

// namePattern is the template for a submission's file name in
// the shared store.
const namePattern = "{user}.{name}.{timestamp}.diff"

// SVNSender commits the submission into the shared subversion
// store the try server polls. All scratch state (the empty
// checkout and the commit message file) is removed on every
// exit path.
//
// Pattern: Strategy -- implements Sender.
type SVNSender struct {
	repo   string
	email  string
	tmpDir string
	now    func() time.Time
}

// NewSVNSender returns a mediated sender for cfg.
func NewSVNSender(cfg Config) *SVNSender {
	return &SVNSender{
		repo:   cfg.SVNRepo,
		email:  cfg.Email,
		tmpDir: cfg.TmpDir,
		now:    time.Now,
	}
}

// Send writes the diff as a uniquely named file into an empty
// checkout of the store and commits it with the payload
// rendered as key=value lines. A file already present under
// the same name is updated in place: committing unmodified
// content is a no-op, which is why the name carries a
// timestamp.
func (s *SVNSender) Send(
	_ context.Context,
	values *payload.Values,
	diff string,
) error {
	const errCtx = "sending change through svn store"

	if s.repo == "" {
		return tryerr.NoAccessf(
			"no try server svn repository configured, " +
				"use --svn_repo",
		)
	}

	checkout, err := os.MkdirTemp(
		s.tmpDir, "trychange-",
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	defer func() {
		if rmErr := os.RemoveAll(checkout); rmErr != nil {
			slog.Error(
				"failed to clean store checkout",
				"error", rmErr,
			)
		}
	}()

	msgFile, err := os.CreateTemp(
		s.tmpDir, "trychange-msg-",
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	defer func() {
		if rmErr := os.Remove(msgFile.Name()); rmErr != nil {
			slog.Error(
				"failed to clean message file",
				"error", rmErr,
			)
		}
	}()

	args := []string{
		"checkout", "--depth", "empty", "-q",
		s.repo, checkout,
	}
	if s.email != "" {
		args = append(args, "--username", s.email)
	}

	if _, err := exec.Ex("", "svn", args...); err != nil {
		return tryerr.Wrap(err)
	}

	fileName := diffFileName(
		values.Get("user"),
		values.Get("name"),
		s.now(),
	)
	fullPath := filepath.Join(checkout, fileName)
	fullURL := s.repo + "/" + fileName

	// Probe whether a file of that exact name already
	// exists in the store before writing.
	_, lsErr := exec.Ex("", "svn", "ls", fullURL)

	if lsErr == nil {
		// Present: pull it down and overwrite in place.
		if _, err := exec.Ex(
			"", "svn", "update", fullPath,
		); err != nil {
			return tryerr.Wrap(err)
		}

		if err := os.WriteFile(
			fullPath, []byte(diff), 0o600,
		); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	} else {
		if err := os.WriteFile(
			fullPath, []byte(diff), 0o600,
		); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		if _, err := exec.Ex(
			"", "svn", "add", fullPath,
		); err != nil {
			return tryerr.Wrap(err)
		}
	}

	if _, err := msgFile.WriteString(
		values.Description(),
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := msgFile.Close(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := exec.Ex(
		"", "svn",
		"commit", fullPath,
		"--file", msgFile.Name(),
	); err != nil {
		return tryerr.Wrap(err)
	}

	slog.Info(
		"change committed to store",
		"file", fileName,
	)

	return nil
}

// diffFileName renders the store file name for a submission.
// Literal dots in user and job name become dashes so they
// cannot collide with the extension; colons in the timestamp
// become dots so the name is portable.
func diffFileName(
	user string,
	name string,
	now time.Time,
) string {
	ts := strings.ReplaceAll(
		now.Format("2006-01-02 15:04:05"), ":", ".",
	)

	return fasttemplate.ExecuteStringStd(
		namePattern, "{", "}",
		map[string]any{
			"user":      escapeDot(user),
			"name":      escapeDot(name),
			"timestamp": ts,
		},
	)
}

// escapeDot replaces every literal dot with a dash.
func escapeDot(s string) string {
	return strings.ReplaceAll(s, ".", "-")
}
