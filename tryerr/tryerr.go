// Package tryerr defines the classified errors a try job
// submission can end with. Both kinds are terminal and render
// with a fixed trailing hint.
package tryerr

import (
	"errors"
	"fmt"

	"github.com/byte4ever/trychange/exec"
)

// HelpString trails every classified error message.
const HelpString = "Sorry, Tryserver is not available."

// InvalidUsageError reports caller or configuration misuse
// detected before or during submission.
type InvalidUsageError struct {
	Reason string
}

// Error renders the reason followed by the help trailer.
func (e *InvalidUsageError) Error() string {
	return e.Reason + "\n" + HelpString
}

// NoAccessError reports that the try server or the shared
// store could not be reached or rejected the submission.
type NoAccessError struct {
	Reason string
	Err    error
}

// Error renders the reason followed by the help trailer.
func (e *NoAccessError) Error() string {
	return e.Reason + "\n" + HelpString
}

// Unwrap returns the underlying cause, if any.
func (e *NoAccessError) Unwrap() error {
	return e.Err
}

// Usagef builds an InvalidUsageError from a format string.
func Usagef(format string, args ...any) error {
	return &InvalidUsageError{
		Reason: fmt.Sprintf(format, args...),
	}
}

// NoAccessf builds a NoAccessError from a format string.
func NoAccessf(format string, args ...any) error {
	return &NoAccessError{
		Reason: fmt.Sprintf(format, args...),
	}
}

// IsClassified reports whether err already carries one of the
// two terminal kinds.
func IsClassified(err error) bool {
	var iu *InvalidUsageError

	var na *NoAccessError

	return errors.As(err, &iu) || errors.As(err, &na)
}

// Wrap classifies err as a NoAccessError unless it is already
// classified. Failed commands keep their command line and
// captured output in the message for diagnosis.
func Wrap(err error) error {
	if err == nil || IsClassified(err) {
		return err
	}

	if ce, ok := exec.AsCommandError(err); ok {
		return &NoAccessError{
			Reason: ce.Cmd + "\nOutput:\n" + ce.Output,
			Err:    err,
		}
	}

	return &NoAccessError{
		Reason: err.Error(),
		Err:    err,
	}
}
