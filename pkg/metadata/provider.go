package metadata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Provider is a single external catalog. Lookups return nil results with a
// nil error when the catalog simply has no match; errors are reserved for
// transport, decode, and upstream failures.
type Provider interface {
	Name() string
	LookupByISBN(ctx context.Context, isbn string) (*BookMetadata, error)
	LookupByTitle(ctx context.Context, title, author string) ([]*BookMetadata, error)
}

// ErrUpstreamUnavailable marks failures worth retrying: unreachable hosts,
// 5xx responses, and rate limiting. Everything else is permanent for the call.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// fetchJSON issues a GET and decodes the body into out. Status codes that
// indicate a provider-side problem are wrapped in ErrUpstreamUnavailable so
// the resolver knows a retry could help.
func fetchJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create provider request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(ErrUpstreamUnavailable, "failed to reach provider: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return errors.Wrapf(ErrUpstreamUnavailable, "provider returned HTTP %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("provider returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(ErrUpstreamUnavailable, "failed to read provider response: %v", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse provider response")
	}

	return nil
}
