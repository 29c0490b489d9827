package pluginloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/polytool-dev/polytool/internal/application/errors"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// loadURL resolves a Url locator. A pinned (non-latest) locator is served
// from its cache file when one exists, with no network request;
// otherwise the artifact is fetched, retrying transient network
// failures, and the cache is used only if that fetch fails (spec.md
// §4.2).
func (l *Loader) loadURL(ctx context.Context, id values.Id, locator entities.PluginLocator) ([]byte, error) {
	ext := ext(locator.URL)
	cachePath := l.cachePath(id, locator.URL, ext, !locator.IsLatest())

	if l.offline {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
		return nil, apperrors.NewOfflineError("download plugin artifact " + locator.URL)
	}

	if !locator.IsLatest() {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
	}

	data, err := l.getWithRetry(ctx, locator.URL)
	if err != nil {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
		return nil, err
	}

	if err := l.writeCache(cachePath, data); err != nil {
		return nil, err
	}
	return data, nil
}

// loadGitHubRelease resolves a GitHubRelease locator: pick the release
// named by the tag, or GitHub's latest release when the tag is empty or
// "latest", then an asset by priority — direct
// bytecode first, then an archive named with the expected prefix
// (spec.md §4.2).
func (l *Loader) loadGitHubRelease(ctx context.Context, id values.Id, locator entities.PluginLocator) ([]byte, error) {
	cacheKey := locator.Repo + "@" + locator.Tag
	cachePath := l.cachePath(id, cacheKey, "wasm", !locator.IsLatest())

	if l.offline {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
		return nil, apperrors.NewOfflineError("download github release from " + locator.Repo)
	}

	if !locator.IsLatest() {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
	}

	release, err := l.resolveRelease(ctx, locator.Repo, locator.Tag)
	if err != nil {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
		return nil, err
	}

	asset := pickAsset(release.Assets, string(id), locator.AssetPrefix)
	if asset == nil {
		return nil, fmt.Errorf("no suitable asset found in release %s of %s", release.TagName, locator.Repo)
	}

	data, err := l.getWithRetry(ctx, asset.BrowserDownloadURL)
	if err != nil {
		return nil, err
	}

	if err := l.writeCache(cachePath, data); err != nil {
		return nil, err
	}
	return data, nil
}

type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

func (l *Loader) resolveRelease(ctx context.Context, repo, tag string) (*githubRelease, error) {
	url := "https://api.github.com/repos/" + repo + "/releases/latest"
	if tag != "" && tag != "latest" {
		url = "https://api.github.com/repos/" + repo + "/releases/tags/" + tag
	}

	data, err := l.getWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("resolving release for %s: %w", repo, err)
	}

	var release githubRelease
	if err := json.Unmarshal(data, &release); err != nil {
		return nil, fmt.Errorf("parsing release metadata for %s: %w", repo, err)
	}
	return &release, nil
}

// pickAsset prefers a direct .wasm bytecode asset, then an archive whose
// name starts with prefix (or id, if prefix is unset) and carries a
// known archive extension.
func pickAsset(assets []githubAsset, id, prefix string) *githubAsset {
	for i := range assets {
		if strings.HasSuffix(assets[i].Name, ".wasm") {
			return &assets[i]
		}
	}

	want := prefix
	if want == "" {
		want = id
	}

	candidates := make([]githubAsset, 0, len(assets))
	for _, a := range assets {
		if !strings.HasPrefix(a.Name, want) {
			continue
		}
		if hasArchiveExtension(a.Name) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return &candidates[0]
}

func hasArchiveExtension(name string) bool {
	for _, suffix := range []string{".tar.gz", ".tgz", ".zip", ".tar.xz", ".tar.bz2"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// getWithRetry performs an HTTP GET with exponential backoff, matching
// the retry policy install.Downloader applies to prebuilt artifacts —
// network errors are the only class of failure spec.md §7 allows the
// loader to recover from locally.
func (l *Loader) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/octet-stream")

		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("requesting %s: %w", url, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(fmt.Errorf("requesting %s: status %d", url, resp.StatusCode))
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("requesting %s: status %d", url, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response from %s: %w", url, err)
		}
		return body, nil
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
	)
	if err != nil {
		return nil, apperrors.NewNetError(url, "request failed after retries", err)
	}
	return data, nil
}

func ext(url string) string {
	base := path.Base(url)
	if idx := strings.LastIndexByte(base, '.'); idx >= 0 {
		return base[idx+1:]
	}
	return "wasm"
}
