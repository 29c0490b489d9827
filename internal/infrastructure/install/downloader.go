// Package install implements the infrastructure side of the install
// pipeline: downloading and verifying prebuilt artifacts, unpacking
// archives, and running the install-graph's bounded worker pool
// (spec.md §4.5, §5).
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/polytool-dev/polytool/internal/application/errors"
)

// Downloader implements ports.Downloader over net/http, retrying
// transient failures with randomized exponential backoff — the
// only retried class of failure per spec.md §7's propagation policy
// ("recovery is local only for: retried HTTP failures").
type Downloader struct {
	client *http.Client
}

// NewDownloader constructs a Downloader over client. A nil client is
// replaced by one with a single 150s overall request timeout; no
// separate connect or read timeout is set.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 150 * time.Second}
	}
	return &Downloader{client: client}
}

// Download fetches url to destPath, retrying network-layer failures
// (connection errors, 5xx responses) up to 5 attempts with exponential
// backoff. A 4xx response is not retried — it indicates a bad request,
// not a transient failure.
func (d *Downloader) Download(ctx context.Context, url, destPath string) error {
	operation := func() (struct{}, error) {
		if err := d.attempt(ctx, url, destPath); err != nil {
			if isPermanent(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
	)
	if err != nil {
		return apperrors.NewNetError(url, "download failed after retries", err)
	}
	return nil
}

func (d *Downloader) attempt(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return permanentError{err}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return permanentError{fmt.Errorf("requesting %s: status %d", url, resp.StatusCode)}
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("requesting %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(destPath) //nolint:gosec // G304: destPath is built from the store's own temp dir
	if err != nil {
		return permanentError{fmt.Errorf("creating %s: %w", destPath, err)}
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	return nil
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

func isPermanent(err error) bool {
	var p permanentError
	return err != nil && asPermanent(err, &p)
}

func asPermanent(err error, target *permanentError) bool {
	for err != nil {
		if p, ok := err.(permanentError); ok { //nolint:errorlint // deliberate concrete-type check before falling back to Unwrap
			*target = p
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
