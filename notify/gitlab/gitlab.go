package gitlab

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/trychange/notify"
)

// Config holds the settings needed to create a GitLab status
// notifier.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// Repo is the full project path (e.g. "org/project").
	Repo string
	// AccessToken is a personal or project access token used
	// for authentication.
	AccessToken string
}

// Provider posts try-job status notes on GitLab merge
// requests.
//
// Pattern: Strategy -- implements notify.Notifier.
type Provider struct {
	client *gl.Client
	repo   string
}

// NewProvider validates cfg and returns a Provider ready to
// post status notes.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab notifier"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Provider{
		client: client,
		repo:   cfg.Repo,
	}, nil
}

// NotifyTried posts a note on the merge request matching the
// issue number, stating the try job was submitted and which
// agents it targets.
func (p *Provider) NotifyTried(
	_ context.Context,
	issue int,
	name string,
	agents []string,
) error {
	const errCtx = "posting gitlab status note"

	body := notify.Message(name, agents)

	_, resp, err := p.client.Notes.CreateMergeRequestNote(
		p.repo, issue,
		&gl.CreateMergeRequestNoteOptions{
			Body: &body,
		},
	)
	if err == nil {
		slog.Info("posted status note", "mr", issue)

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
				"gitlab response",
				"body", string(rb),
			)
		}
	}

	return fmt.Errorf("%s: %w", errCtx, err)
}
