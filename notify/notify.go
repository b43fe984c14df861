// Package notify posts try-job status updates to the code
// review issue a change belongs to. The review platform is
// abstracted behind the Notifier interface; implementations
// exist for GitHub and GitLab in sub-packages.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Pattern: Strategy -- swap review platform without changing
// the submission pipeline.

// Notifier posts a status note on a review issue.
type Notifier interface {
	NotifyTried(
		ctx context.Context,
		issue int,
		name string,
		agents []string,
	) error
}

// NotifierFunc adapts a plain function to the Notifier
// interface.
type NotifierFunc func(
	ctx context.Context,
	issue int,
	name string,
	agents []string,
) error

// NotifyTried delegates to the wrapped function.
func (f NotifierFunc) NotifyTried(
	ctx context.Context,
	issue int,
	name string,
	agents []string,
) error {
	return f(ctx, issue, name, agents)
}

// Message renders the status note body for a submitted job.
func Message(name string, agents []string) string {
	return fmt.Sprintf(
		"Try job %q sent to: %s",
		name, strings.Join(agents, ", "),
	)
}
