// Package pluginloader implements ports.PluginLoader: turning a
// PluginLocator into local WASM bytes, cached by content hash (spec.md
// §4.2).
package pluginloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// Loader implements ports.PluginLoader over the file, URL, GitHub
// release, and OCI image locator kinds.
type Loader struct {
	storeRoot string
	client    *http.Client
	offline   bool
	auditor   *Auditor
}

// Option configures a Loader.
type Option func(*Loader)

// WithOffline short-circuits every network locator to its cached
// artifact, failing if none exists (spec.md §4.2 "offline mode").
func WithOffline(offline bool) Option {
	return func(l *Loader) { l.offline = offline }
}

// WithAuditor attaches a secret-leak auditor run over File locators
// before they are trusted.
func WithAuditor(auditor *Auditor) Option {
	return func(l *Loader) { l.auditor = auditor }
}

// NewLoader constructs a Loader rooted at storeRoot (its cache lives at
// <storeRoot>/plugins).
func NewLoader(storeRoot string, client *http.Client, opts ...Option) *Loader {
	if client == nil {
		client = &http.Client{}
	}
	l := &Loader{storeRoot: storeRoot, client: client}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves locator to WASM bytes, consulting and populating the
// content-hash cache.
func (l *Loader) Load(ctx context.Context, id values.Id, locator entities.PluginLocator) ([]byte, error) {
	switch locator.Kind {
	case entities.LocatorFile:
		return l.loadFile(locator)
	case entities.LocatorURL:
		return l.loadURL(ctx, id, locator)
	case entities.LocatorGitHubRelease:
		return l.loadGitHubRelease(ctx, id, locator)
	case entities.LocatorOCIImage:
		return l.loadOCIImage(ctx, id, locator)
	default:
		return nil, fmt.Errorf("unsupported plugin locator kind %q", locator.Kind)
	}
}

// loadFile canonicalizes and reads a local plugin artifact (spec.md
// §4.2 "File: canonicalize ... fail if absent").
func (l *Loader) loadFile(locator entities.PluginLocator) ([]byte, error) {
	path, err := filepath.Abs(locator.Path)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing %s: %w", locator.Path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("plugin file %s: %w", path, err)
	}

	if l.auditor != nil {
		l.auditor.AuditPath(path)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a `.prototools` plugin locator the user configured
	if err != nil {
		return nil, fmt.Errorf("reading plugin file %s: %w", path, err)
	}
	return data, nil
}

// cachePath builds the loader's content-hash cache path for a locator
// (spec.md §4.2: `<store>/plugins/<id>-<sha256(hostname+path)>.<ext>`,
// or `<id>-latest-<hash>.<ext>` for non-pinned locators).
func (l *Loader) cachePath(id values.Id, hostAndPath, ext string, pinned bool) string {
	sum := sha256.Sum256([]byte(hostAndPath))
	hash := hex.EncodeToString(sum[:])[:16]

	name := string(id) + "-" + hash
	if !pinned {
		name = string(id) + "-latest-" + hash
	}
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(l.storeRoot, "plugins", name)
}

func (l *Loader) readCache(path string) ([]byte, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the loader's own derived cache path
	if err != nil {
		return nil, false
	}
	return data, true
}

func (l *Loader) writeCache(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: plugin bytecode is not sensitive
		return fmt.Errorf("writing cache file %s: %w", path, err)
	}
	return nil
}
