package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/trychange/notify"
)

// Config holds the settings needed to create a GitHub status
// notifier.
type Config struct {
	// RepoOwner is the GitHub user or organisation that owns
	// the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// AccessToken is a personal access token or GitHub App
	// token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave empty for
	// github.com.
	EnterpriseHost string
}

// Provider posts try-job status comments on GitHub issues and
// pull requests.
//
// Pattern: Strategy -- implements notify.Notifier.
type Provider struct {
	client    *gh.Client
	repoOwner string
	repo      string
}

// NewProvider validates cfg and returns a Provider ready to
// post status comments.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github notifier"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	if cfg.EnterpriseHost != "" {
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return &Provider{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
	}, nil
}

// NotifyTried comments on the issue that the try job was
// submitted and which agents it targets.
func (p *Provider) NotifyTried(
	ctx context.Context,
	issue int,
	name string,
	agents []string,
) error {
	const errCtx = "posting github status comment"

	body := notify.Message(name, agents)

	created, resp, err := p.client.Issues.CreateComment(
		ctx, p.repoOwner, p.repo, issue,
		&gh.IssueComment{Body: &body},
	)
	if err == nil {
		slog.Info(
			"posted status comment",
			"url", created.GetHTMLURL(),
		)

		return nil
	}

	// Log the response body for debugging.
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close() //nolint:errcheck

		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			slog.Warn(
				"cannot read response body",
				"error", readErr,
			)
		} else {
			slog.Warn(
				"github response",
				"body", string(rb),
			)
		}
	}

	return fmt.Errorf("%s: %w", errCtx, err)
}
