// Package exec provides shell command execution helpers.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	oe "os/exec"
	"strings"
)

// CommandError describes a failed command: the command line
// that ran, its combined output, and the exit code. ExitCode
// is -1 when the process never started.
type CommandError struct {
	Cmd      string
	Output   string
	ExitCode int
	Err      error
}

// Error formats the failure with the command line and exit
// code.
func (e *CommandError) Error() string {
	return fmt.Sprintf(
		"%s: exit %d: %v", e.Cmd, e.ExitCode, e.Err,
	)
}

// Unwrap returns the underlying process error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Ex executes the named command in the given directory and
// returns combined stdout+stderr output. Pass empty dir to
// use the current working directory. Failures carry a
// *CommandError with the command line, output, and exit code.
func Ex(
	dir string,
	name string,
	arg ...string,
) (string, error) {
	const errCtx = "executing command"

	slog.Info(
		"executing",
		"cmd", name,
		"args", strings.Join(arg, " "),
	)

	cmd := oe.CommandContext(context.Background(), name, arg...)
	if dir != "" {
		cmd.Dir = dir
	}

	by, err := cmd.CombinedOutput()

	slog.Debug("output", "result", string(by))

	if err != nil {
		code := -1

		var ee *oe.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		}

		cmdline := name
		if len(arg) > 0 {
			cmdline += " " + strings.Join(arg, " ")
		}

		return string(by), fmt.Errorf(
			"%s: %w", errCtx, &CommandError{
				Cmd:      cmdline,
				Output:   string(by),
				ExitCode: code,
				Err:      err,
			},
		)
	}

	return string(by), nil
}

// AsCommandError extracts the *CommandError from err, if any.
func AsCommandError(err error) (*CommandError, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce, true
	}

	return nil, false
}

// IsNotInstalled reports whether err means the command's
// binary is absent from PATH.
func IsNotInstalled(err error) bool {
	return errors.Is(err, oe.ErrNotFound)
}
