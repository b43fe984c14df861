package tryjob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/byte4ever/trychange/agents"
	"github.com/byte4ever/trychange/notify"
	"github.com/byte4ever/trychange/payload"
	"github.com/byte4ever/trychange/scm"
	"github.com/byte4ever/trychange/transport"
	"github.com/byte4ever/trychange/tryerr"
)

// DefaultName is the placeholder job name used when none was
// supplied or derivable.
const DefaultName = "Unnamed"

// Config holds all settings for a try job submission run. Use
// a Config struct instead of many arguments.
type Config struct {
	// Dir is the working directory inspected for a checkout.
	// Empty means the current directory.
	Dir string

	// DiffFile is a pre-made diff file to submit instead of
	// generating one from the checkout.
	DiffFile string

	// DiffURL fetches the diff from a remote location instead
	// of generating one.
	DiffURL string

	// Files restricts the generated diff to these paths
	// (subversion checkouts only).
	Files []string

	// User is the job owner handle. Required.
	User string

	// Email is the address results are reported to. Resolved
	// from the backend when empty.
	Email string

	// Name is the descriptive job name.
	Name string

	// Bots names the target agents. Resolved from the agent
	// policy when empty.
	Bots []string

	// Tests overrides the tests to run.
	Tests []string

	// Revision pins the base revision for the job.
	Revision string

	// Clobber forces a non-incremental build.
	Clobber bool

	// Root is the base subdirectory the patch applies under.
	Root string

	// PatchLevel is the -pN strip level for the patch.
	PatchLevel int

	// Issue is the code review issue to link the job to.
	Issue int

	// Patchset is the code review patchset to link the job
	// to.
	Patchset int

	// Target selects a build configuration.
	Target string

	// Project overrides which project the job belongs to.
	Project string

	// Transport forces a delivery strategy; transport.Unset
	// applies the default selection policy.
	Transport transport.Kind

	// Host is the try server host for direct delivery.
	Host string

	// Port is the try server port for direct delivery.
	Port string

	// Proxy overrides ambient proxy configuration for direct
	// delivery; the literal "none" disables proxying.
	Proxy string

	// SVNRepo is the shared store URL for mediated delivery.
	SVNRepo string

	// TmpDir hosts the mediated transport's scratch state.
	TmpDir string

	// Resolve overrides host resolution in the default
	// transport selection. Nil uses DNS.
	Resolve func(host string) bool

	// Notifier posts a status note on the review issue after
	// a successful submission. Optional.
	Notifier notify.Notifier
}

// Result describes an accepted submission.
type Result struct {
	// Name is the job name the change was submitted under.
	Name string

	// Agents are the build agents the job targets.
	Agents []string
}

// Run executes the full submission workflow and returns the
// resolved job name and agent list. Errors are classified:
// InvalidUsageError for caller or configuration misuse,
// NoAccessError for anything that kept the submission from
// being accepted.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	const errCtx = "submitting try job"

	if cfg.User == "" {
		return nil, tryerr.Usagef("user must be set")
	}

	dir := cfg.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		dir = wd
	}

	// Step 1: Acquire a pre-made diff, when one was given.
	diff, err := loadDiff(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Step 2: Detect the version control backend. Resolution
	// still matters for author identity and agent selection,
	// but its failure is survivable once a diff is in hand.
	src, err := scm.Detect(dir, scm.Params{
		Files: cfg.Files,
		Email: cfg.Email,
		Name:  cfg.Name,
	})
	if err != nil {
		if diff == "" {
			return nil, tryerr.Wrap(err)
		}

		slog.Warn(
			"no version control system detected",
			"error", err,
		)

		src = nil
	}

	// Step 3: Resolve the diff from the backend when none
	// was supplied.
	if diff == "" {
		diff, err = src.Diff()
		if err != nil {
			return nil, tryerr.Wrap(err)
		}
	}

	// Step 4: Resolve job name and author identity.
	name := cfg.Name

	if name == "" && src != nil {
		name, err = src.JobName()
		if err != nil {
			return nil, tryerr.Wrap(err)
		}
	}

	if name == "" {
		if cfg.Issue != 0 {
			name = fmt.Sprintf("Issue %d", cfg.Issue)
		} else {
			name = DefaultName

			slog.Info(
				"use --name to change the job name",
				"name", name,
			)
		}
	}

	email := cfg.Email

	if email == "" && src != nil {
		email, err = src.Email()
		if err != nil {
			return nil, tryerr.Wrap(err)
		}
	}

	if email == "" {
		slog.Warn(
			"no results email resolved, the try " +
				"server will pick a destination",
		)
	}

	// Step 5: Resolve target agents from the policy file
	// when the caller named none.
	bots, err := resolveBots(cfg, src)
	if err != nil {
		return nil, err
	}

	// Step 6: Assemble the submission payload.
	values := payload.New(payload.Params{
		User:       cfg.User,
		Email:      email,
		Name:       name,
		Bots:       bots,
		Revision:   cfg.Revision,
		Clobber:    cfg.Clobber,
		Tests:      cfg.Tests,
		Root:       cfg.Root,
		PatchLevel: cfg.PatchLevel,
		Issue:      cfg.Issue,
		Patchset:   cfg.Patchset,
		Target:     cfg.Target,
		Project:    cfg.Project,
	})

	// Step 7: Choose the transport once and deliver in a
	// single attempt.
	sender, err := transport.Choose(
		cfg.Transport, transport.Config{
			Host:    cfg.Host,
			Port:    cfg.Port,
			Proxy:   cfg.Proxy,
			SVNRepo: cfg.SVNRepo,
			Email:   email,
			TmpDir:  cfg.TmpDir,
			Resolve: cfg.Resolve,
		},
	)
	if err != nil {
		return nil, err
	}

	if err := sender.Send(ctx, values, diff); err != nil {
		return nil, tryerr.Wrap(err)
	}

	// Step 8: Post the status note on the review issue. The
	// submission is already accepted; a notification failure
	// does not undo it.
	if cfg.Notifier != nil && cfg.Issue != 0 {
		if err := cfg.Notifier.NotifyTried(
			ctx, cfg.Issue, name, bots,
		); err != nil {
			slog.Warn(
				"failed to notify review issue",
				"issue", cfg.Issue,
				"error", err,
			)
		}
	}

	return &Result{
		Name:   name,
		Agents: bots,
	}, nil
}

// loadDiff returns the pre-made diff content from the
// configured URL or file, or empty when the diff should be
// generated from the checkout.
func loadDiff(
	ctx context.Context,
	cfg Config,
) (string, error) {
	if cfg.DiffURL != "" {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, cfg.DiffURL, nil,
		)
		if err != nil {
			return "", tryerr.Usagef(
				"invalid diff url %q: %v",
				cfg.DiffURL, err,
			)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", &tryerr.NoAccessError{
				Reason: fmt.Sprintf(
					"could not fetch diff from %s",
					cfg.DiffURL,
				),
				Err: err,
			}
		}

		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", &tryerr.NoAccessError{
				Reason: fmt.Sprintf(
					"could not fetch diff from %s",
					cfg.DiffURL,
				),
				Err: err,
			}
		}

		return string(body), nil
	}

	if cfg.DiffFile != "" {
		data, err := os.ReadFile(cfg.DiffFile) //nolint:gosec // caller-provided path
		if err != nil {
			return "", tryerr.Usagef(
				"could not read diff file: %v", err,
			)
		}

		return string(data), nil
	}

	return "", nil
}

// resolveBots returns the explicit agent list, or selects one
// from the checkout's policy file. A job without any target
// agent cannot be scheduled.
func resolveBots(
	cfg Config,
	src scm.Source,
) ([]string, error) {
	if len(cfg.Bots) > 0 {
		return cfg.Bots, nil
	}

	if cfg.DiffURL != "" {
		return nil, tryerr.Usagef(
			"you need to specify which bots to use " +
				"with --bot",
		)
	}

	if src == nil {
		return nil, tryerr.Usagef(
			"no checkout to select agents from, " +
				"use --bot",
		)
	}

	policy, err := agents.Load(src.LocalRoot())
	if err != nil {
		return nil, tryerr.Wrap(err)
	}

	bots, err := agents.Select(src.Files(), policy)
	if err != nil {
		return nil, tryerr.Wrap(err)
	}

	if len(bots) == 0 {
		return nil, tryerr.Usagef(
			"no target agents resolvable, use --bot " +
				"or add a %s policy", agents.PolicyFile,
		)
	}

	return bots, nil
}
