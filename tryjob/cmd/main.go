// Command trychange submits a pending change to the try
// server, which runs it against a set of build and test agents
// before it is committed. The change is delivered either by a
// direct HTTP post or by committing the diff into a shared
// subversion store the server polls.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/joho/godotenv"

	"github.com/byte4ever/trychange/notify"
	"github.com/byte4ever/trychange/notify/github"
	"github.com/byte4ever/trychange/notify/gitlab"
	"github.com/byte4ever/trychange/settings"
	"github.com/byte4ever/trychange/transport"
	"github.com/byte4ever/trychange/tryjob"
)

// sliceFlag implements flag.Value for multi-value string
// flags (repeated --flag=val usage).
type sliceFlag []string

// String returns the flag value as a comma-separated string
// representation.
func (s *sliceFlag) String() string {
	if s == nil {
		return ""
	}

	return strings.Join(*s, ",")
}

// Set appends a value to the slice.
func (s *sliceFlag) Set(val string) error {
	*s = append(*s, val)

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running trychange"

	// Env-file defaults are loaded before flag defaults are
	// computed. A missing .env is fine.
	_ = godotenv.Load()

	// Repository-local defaults, found from any directory
	// inside the checkout.
	defaults, err := settings.LoadNearest(".")
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	// Result and status flags.
	userFlag := flag.String(
		"user", defaultUser(),
		"Owner user name",
	)
	email := flag.String(
		"email", defaultEmail(),
		"Email address the agents report results to; "+
			"defaults to TRYBOT_RESULTS_EMAIL_ADDRESS "+
			"or EMAIL_ADDRESS",
	)
	name := flag.String(
		"name", "",
		"Descriptive name of the try job",
	)
	issue := flag.Int(
		"issue", 0,
		"Code review issue to update with the try "+
			"job status",
	)
	patchset := flag.Int(
		"patchset", 0,
		"Code review patchset to update with the try "+
			"job status",
	)

	// Try job flags.
	var bots sliceFlag

	flag.Var(
		&bots, "bot",
		"Agent to run the job on (repeatable)",
	)

	revision := flag.String(
		"revision", "",
		"Revision to use for the try job; the try "+
			"server picks one when unset",
	)
	clobber := flag.Bool(
		"clobber", false,
		"Force a clobber before building",
	)
	target := flag.String(
		"target", "",
		"Build configuration, usually 'debug' or "+
			"'release'",
	)
	project := flag.String(
		"project", defaults.Project,
		"Project the job belongs to",
	)

	var tests sliceFlag

	flag.Var(
		&tests, "tests",
		"Test to run, overriding the defaults "+
			"(repeatable)",
	)

	// Patch flags.
	var files sliceFlag

	flag.Var(
		&files, "file",
		"File to include in the try, relative to the "+
			"repository root (repeatable)",
	)

	diffFile := flag.String(
		"diff", "",
		"File containing the diff to try",
	)
	diffURL := flag.String(
		"url", "",
		"Url where to grab a patch",
	)
	root := flag.String(
		"root", defaults.Root,
		"Root to use for the patch; base "+
			"subdirectory for patches created in a "+
			"subdirectory",
	)
	patchLevel := flag.Int(
		"patchlevel", defaults.PatchLevel,
		"Used as -pN parameter to patch",
	)

	// Direct (HTTP) transport flags.
	useHTTP := flag.Bool(
		"use_http", false,
		"Use HTTP to talk to the try server",
	)
	host := flag.String(
		"host", defaults.HTTPHost,
		"Host address",
	)
	port := flag.String(
		"port", defaults.HTTPPort,
		"HTTP port",
	)
	proxy := flag.String(
		"proxy", "",
		"HTTP proxy; 'none' disables proxying "+
			"entirely",
	)

	// Mediated (SVN) transport flags.
	useSVN := flag.Bool(
		"use_svn", false,
		"Use SVN to talk to the try server",
	)
	svnRepo := flag.String(
		"svn_repo", defaults.SVNRepo,
		"SVN url to use to write the changes in",
	)
	tmpDir := flag.String(
		"tmp_dir", "",
		"Directory for the mediated transport's "+
			"scratch checkout",
	)

	// Review platform flags.
	reviewServer := flag.String(
		"review_server", "",
		"Review platform to notify: github or gitlab",
	)
	ghRepoOwner := flag.String(
		"github_repo_owner", "",
		"GitHub repository owner",
	)
	ghRepo := flag.String(
		"github_repo", "",
		"GitHub repository name",
	)
	ghToken := flag.String(
		"github_access_token", "",
		"GitHub personal access token",
	)
	ghEnterprise := flag.String(
		"github_enterprise_host", "",
		"GitHub Enterprise hostname",
	)
	glHost := flag.String(
		"gitlab_host", "",
		"GitLab instance URL",
	)
	glRepo := flag.String(
		"gitlab_repo", "",
		"GitLab project path (org/project)",
	)
	glToken := flag.String(
		"gitlab_access_token", "",
		"GitLab personal access token",
	)

	flag.Parse()

	forced := transport.Unset

	switch {
	case *useSVN:
		forced = transport.Mediated
	case *useHTTP:
		forced = transport.Direct
	}

	notifier, err := newNotifier(
		*reviewServer,
		notifierFlags{
			ghRepoOwner:  *ghRepoOwner,
			ghRepo:       *ghRepo,
			ghToken:      *ghToken,
			ghEnterprise: *ghEnterprise,
			glHost:       *glHost,
			glRepo:       *glRepo,
			glToken:      *glToken,
		},
	)
	if err != nil {
		return fmt.Errorf(
			"%s: create notifier: %w", errCtx, err,
		)
	}

	cfg := tryjob.Config{
		DiffFile:   *diffFile,
		DiffURL:    *diffURL,
		Files:      files,
		User:       *userFlag,
		Email:      *email,
		Name:       *name,
		Bots:       bots,
		Tests:      tests,
		Revision:   *revision,
		Clobber:    *clobber,
		Root:       *root,
		PatchLevel: *patchLevel,
		Issue:      *issue,
		Patchset:   *patchset,
		Target:     *target,
		Project:    *project,
		Transport:  forced,
		Host:       *host,
		Port:       *port,
		Proxy:      *proxy,
		SVNRepo:    *svnRepo,
		TmpDir:     *tmpDir,
		Notifier:   notifier,
	}

	res, err := tryjob.Run(context.Background(), cfg)
	if err != nil {
		return err
	}

	fmt.Printf(
		"Patch '%s' sent to try server: %s\n",
		res.Name, strings.Join(res.Agents, ", "),
	)

	return nil
}

// notifierFlags bundles review-platform flag values to keep
// newNotifier's signature small.
type notifierFlags struct {
	ghRepoOwner  string
	ghRepo       string
	ghToken      string
	ghEnterprise string
	glHost       string
	glRepo       string
	glToken      string
}

// newNotifier creates a notify.Notifier based on the server
// name. Empty means no notification. Pattern: Factory --
// selects platform implementation at runtime.
func newNotifier(
	server string,
	nf notifierFlags,
) (notify.Notifier, error) {
	const errCtx = "creating notifier"

	switch server {
	case "":
		return nil, nil

	case "github":
		p, err := github.NewProvider(github.Config{
			RepoOwner:      nf.ghRepoOwner,
			Repo:           nf.ghRepo,
			AccessToken:    nf.ghToken,
			EnterpriseHost: nf.ghEnterprise,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "gitlab":
		p, err := gitlab.NewProvider(gitlab.Config{
			Host:        nf.glHost,
			Repo:        nf.glRepo,
			AccessToken: nf.glToken,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown server %q", errCtx, server,
		)
	}
}

// defaultUser resolves the job owner from the OS account.
func defaultUser() string {
	if u, err := user.Current(); err == nil &&
		u.Username != "" {
		return u.Username
	}

	return os.Getenv("USER")
}

// defaultEmail resolves the results address from the
// environment.
func defaultEmail() string {
	if v := os.Getenv(
		"TRYBOT_RESULTS_EMAIL_ADDRESS",
	); v != "" {
		return v
	}

	return os.Getenv("EMAIL_ADDRESS")
}
