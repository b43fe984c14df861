package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/byte4ever/trychange/payload"
	"github.com/byte4ever/trychange/tryerr"
)

// SubmitPath is the fixed submission endpoint on the try
// server.
const SubmitPath = "/send_try_patch"

// okBody is the exact response body a successful submission
// returns. Anything else, including a trailing newline, is a
// rejection.
const okBody = "OK"

// HTTPSender posts the submission directly to the try server
// in a single attempt. No retry is performed.
//
// Pattern: Strategy -- implements Sender.
type HTTPSender struct {
	host  string
	port  string
	proxy string
}

// NewHTTPSender returns a direct sender for cfg.
func NewHTTPSender(cfg Config) *HTTPSender {
	return &HTTPSender{
		host:  cfg.Host,
		port:  cfg.Port,
		proxy: cfg.Proxy,
	}
}

// Send form-encodes values plus the diff as the "patch" field
// and posts them to the submission endpoint. Success requires
// the response body to equal exactly "OK".
func (s *HTTPSender) Send(
	ctx context.Context,
	values *payload.Values,
	diff string,
) error {
	if s.host == "" {
		return tryerr.NoAccessf(
			"no try server host configured, use --host",
		)
	}

	if s.port == "" {
		return tryerr.NoAccessf(
			"no try server port configured, use --port",
		)
	}

	values.Set("patch", diff)

	endpoint := fmt.Sprintf(
		"http://%s:%s%s", s.host, s.port, SubmitPath,
	)

	client, err := s.newClient()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return tryerr.NoAccessf(
			"%s is unaccessible: %v", endpoint, err,
		)
	}

	req.Header.Set(
		"Content-Type",
		"application/x-www-form-urlencoded",
	)

	slog.Info("sending change", "url", endpoint)

	resp, err := client.Do(req)
	if err != nil {
		// A garbled status line together with a bot list
		// almost always means a mistyped agent name.
		if values.Has("bot") &&
			strings.Contains(
				err.Error(), "malformed",
			) {
			return &tryerr.NoAccessError{
				Reason: fmt.Sprintf(
					"%s is unaccessible. "+
						"Bad --bot argument?",
					endpoint,
				),
				Err: err,
			}
		}

		return &tryerr.NoAccessError{
			Reason: fmt.Sprintf(
				"%s is unaccessible. Reason: %v",
				endpoint, err,
			),
			Err: err,
		}
	}

	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &tryerr.NoAccessError{
			Reason: fmt.Sprintf(
				"%s is unaccessible. Reason: %v",
				endpoint, err,
			),
			Err: err,
		}
	}

	if string(body) != okBody {
		return tryerr.NoAccessf(
			"%s is unaccessible: unexpected "+
				"response %q",
			endpoint, string(body),
		)
	}

	slog.Info("change accepted", "url", endpoint)

	return nil
}

// newClient builds the one-shot HTTP client, honoring the
// proxy override. The literal "none" disables ambient proxy
// configuration entirely.
func (s *HTTPSender) newClient() (*http.Client, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	switch {
	case s.proxy == "":

	case strings.EqualFold(s.proxy, "none"):
		tr.Proxy = nil

	default:
		pu, err := url.Parse(s.proxy)
		if err != nil {
			return nil, tryerr.Usagef(
				"invalid proxy %q: %v", s.proxy, err,
			)
		}

		tr.Proxy = http.ProxyURL(pu)
	}

	return &http.Client{Transport: tr}, nil
}
