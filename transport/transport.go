package transport

import (
	"context"
	"net"

	"github.com/byte4ever/trychange/payload"
	"github.com/byte4ever/trychange/tryerr"
)

// Kind selects a delivery strategy.
type Kind int

const (
	// Unset means the caller forced no strategy and the
	// default selection policy applies.
	Unset Kind = iota

	// Direct posts the submission to the server over HTTP.
	Direct

	// Mediated commits the submission into the shared
	// subversion store the server polls.
	Mediated
)

// Sender delivers an assembled submission in a single attempt.
//
// Pattern: Strategy -- swap delivery mechanism without
// changing the pipeline.
type Sender interface {
	Send(
		ctx context.Context,
		values *payload.Values,
		diff string,
	) error
}

// Config carries the delivery endpoints and environment for
// both strategies.
type Config struct {
	// Host is the try server host for direct delivery.
	Host string

	// Port is the try server port for direct delivery.
	Port string

	// Proxy overrides ambient proxy configuration for direct
	// delivery. The literal "none" disables proxying entirely.
	Proxy string

	// SVNRepo is the shared store URL for mediated delivery.
	SVNRepo string

	// Email authenticates the mediated store checkout when
	// set.
	Email string

	// TmpDir hosts the mediated transport's scratch state.
	// Empty means the system default.
	TmpDir string

	// Resolve reports whether a host name resolves. Nil uses
	// a DNS lookup.
	Resolve func(host string) bool
}

// Choose resolves the delivery strategy once: an explicit kind
// wins; otherwise Direct when host and port are configured and
// the host resolves; otherwise Mediated when a store URL is
// configured. Nothing configured is a configuration error, not
// a runtime fallback.
func Choose(explicit Kind, cfg Config) (Sender, error) {
	kind := explicit

	if kind == Unset {
		resolve := cfg.Resolve
		if resolve == nil {
			resolve = hostResolves
		}

		switch {
		case cfg.Host != "" && cfg.Port != "" &&
			resolve(cfg.Host):
			kind = Direct

		case cfg.SVNRepo != "":
			kind = Mediated

		default:
			return nil, tryerr.Usagef(
				"no access method configured, use " +
					"--use_http or --use_svn",
			)
		}
	}

	if kind == Direct {
		return NewHTTPSender(cfg), nil
	}

	return NewSVNSender(cfg), nil
}

// hostResolves probes DNS for the host name.
func hostResolves(host string) bool {
	_, err := net.LookupHost(host)

	return err == nil
}
