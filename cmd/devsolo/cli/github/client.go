// Package github is the typed client for the hosted Git platform.
//
// It talks to the GitHub REST API through cli/go-gh. Rate limits and
// transient 5xx responses are retried with exponential backoff up to a
// bounded attempt budget; exhaustion surfaces as platform-unreachable.
// Authentication failures surface as platform-forbidden and are never
// retried.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
)

const (
	// requestTimeout bounds each platform HTTP call.
	requestTimeout = 30 * time.Second

	// maxAttempts bounds the retry budget for transient failures.
	maxAttempts = 4

	// initialBackoff is doubled after every failed attempt.
	initialBackoff = time.Second
)

// restDoer is the slice of go-gh's REST client the platform client needs.
// Narrowed to an interface so tests can fake the transport.
type restDoer interface {
	Do(method string, path string, body io.Reader, response interface{}) error
}

// Client talks to one repository on the hosted platform.
type Client struct {
	rest  restDoer
	repo  RepoRef
	sleep func(time.Duration)
}

// NewClient builds a client for the repository behind the given remote URL.
// The token comes from config or the GH_TOKEN/GITHUB_TOKEN environment;
// go-gh also falls back to gh CLI credentials when the token is empty.
func NewClient(remoteURL, token string) (*Client, error) {
	ref, err := ParseRemoteURL(remoteURL)
	if err != nil {
		return nil, errkind.Wrap(errkind.PlatformForbidden, err, "cannot determine repository from remote")
	}

	rest, err := api.NewRESTClient(api.ClientOptions{
		Host:      ref.Host,
		AuthToken: token,
		Timeout:   requestTimeout,
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.PlatformForbidden, err, "failed to create platform client")
	}

	return &Client{rest: rest, repo: ref, sleep: time.Sleep}, nil
}

// newClientWithTransport is for tests.
func newClientWithTransport(rest restDoer, repo RepoRef) *Client {
	return &Client{rest: rest, repo: repo, sleep: func(time.Duration) {}}
}

// Repo returns the repository this client talks to.
func (c *Client) Repo() RepoRef {
	return c.repo
}

// apiPath builds a repos/{owner}/{repo}/... path.
func (c *Client) apiPath(format string, args ...any) string {
	return fmt.Sprintf("repos/%s/%s/", c.repo.Owner, c.repo.Name) + fmt.Sprintf(format, args...)
}

// do performs one API call with retry on transient failures.
// A non-nil body is marshaled to JSON on every attempt.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errkind.Wrap(errkind.Internal, err, "marshaling request body")
		}
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errkind.Wrap(errkind.Cancelled, err, "platform call cancelled")
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		err := c.rest.Do(method, path, reader, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) {
			switch {
			case httpErr.StatusCode == 401 || httpErr.StatusCode == 403:
				return errkind.Wrap(errkind.PlatformForbidden, err, "platform rejected credentials")
			case httpErr.StatusCode == 429 || httpErr.StatusCode >= 500:
				// retryable
			default:
				// Other client errors (404, 422) are the caller's concern.
				return err
			}
		}

		if attempt < maxAttempts {
			c.sleep(backoff)
			backoff *= 2
		}
	}
	return errkind.Wrap(errkind.PlatformUnreachable, lastErr, "platform unreachable after %d attempts", maxAttempts)
}

// wrapCall adds call context to an error from do. Kinds assigned by do
// (platform-unreachable, platform-forbidden, cancelled) are preserved; only
// unkinded errors, the 4xx responses do surfaces raw, become git-failure.
func wrapCall(err error, format string, args ...any) error {
	if errkind.Kinded(err) {
		args = append(args, err)
		return fmt.Errorf(format+": %w", args...)
	}
	return errkind.Wrap(errkind.GitFailure, err, format, args...)
}

// statusCodeOf extracts the HTTP status from an error chain, or 0.
func statusCodeOf(err error) int {
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
