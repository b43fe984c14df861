// Package tryjob orchestrates the submission of a pending
// change to the try server. A run is a single linear pass: the
// version control backend is detected, the diff and author are
// resolved, the job description is assembled, a transport is
// chosen once, and the payload is delivered in one attempt.
// Any failure terminates the run with a classified error; there
// are no internal retries.
//
// The main entry point is Run, which accepts a Config struct
// with all parameters for the workflow.
package tryjob
