package wasm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultServices implements hostfuncs.Services using the real OS:
// os/exec for process spawns, net/http for requests, an in-memory env
// overlay per plugin, and a per-plugin VirtualPathMap.
type DefaultServices struct {
	client *http.Client
	logger *slog.Logger

	mu        sync.Mutex
	envByID   map[string]map[string]string
	pathByID  map[string]*VirtualPathMap
}

// NewDefaultServices constructs a DefaultServices using client for HTTP
// calls (so callers can share the host's cached, timeout-configured
// client) and logger for host_log forwarding.
func NewDefaultServices(client *http.Client, logger *slog.Logger) *DefaultServices {
	return &DefaultServices{
		client:   client,
		logger:   logger,
		envByID:  make(map[string]map[string]string),
		pathByID: make(map[string]*VirtualPathMap),
	}
}

// BindPaths registers the virtual path map for a plugin id. Nothing in
// the host calls it, so ToVirtualPath and FromVirtualPath return paths
// unchanged for every plugin.
func (s *DefaultServices) BindPaths(pluginID string, paths *VirtualPathMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathByID[pluginID] = paths
}

func (s *DefaultServices) ExecCommand(ctx context.Context, pluginID, command string, args []string, env map[string]string, cwd string, stream bool) (string, string, int, error) {
	//nolint:gosec // G204: plugin-declared commands are expected; the host is the trust boundary
	cmd := exec.CommandContext(ctx, command, args...)
	if cwd != "" {
		cmd.Dir = cwd
	}

	merged := make(map[string]string, len(env))
	s.mu.Lock()
	for k, v := range s.envByID[pluginID] {
		merged[k] = v
	}
	s.mu.Unlock()
	for k, v := range env {
		merged[k] = v
	}
	envList := make([]string, 0, len(merged))
	for k, v := range merged {
		envList = append(envList, k+"="+v)
	}
	cmd.Env = envList

	var stdout, stderr bytes.Buffer
	if stream {
		cmd.Stdout = io.MultiWriter(os.Stdout, &stdout)
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errorsAs(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = nil
		}
	}
	return stdout.String(), stderr.String(), exitCode, err
}

func (s *DefaultServices) SendRequest(ctx context.Context, pluginID, url, method string, headers map[string]string, body []byte) (int, map[string]string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("building request for plugin %s: %w", pluginID, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("send_request from plugin %s: %w", pluginID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, nil, fmt.Errorf("reading response body for plugin %s: %w", pluginID, err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, respHeaders, respBody, nil
}

func (s *DefaultServices) GetEnvVar(pluginID, name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	env := s.envByID[pluginID]
	if v, ok := env[name]; ok {
		return v, true
	}
	return os.LookupEnv(name)
}

// SetEnvVar writes into the plugin's scoped environment overlay. PATH
// receives append semantics rather than replacement (spec.md §4.1).
func (s *DefaultServices) SetEnvVar(pluginID, name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	env := s.envByID[pluginID]
	if env == nil {
		env = make(map[string]string)
		s.envByID[pluginID] = env
	}
	if name == "PATH" {
		if existing, ok := env[name]; ok && existing != "" {
			env[name] = existing + string(pathListSeparator()) + value
			return
		}
	}
	env[name] = value
}

func (s *DefaultServices) ToVirtualPath(pluginID, real string) string {
	s.mu.Lock()
	paths := s.pathByID[pluginID]
	s.mu.Unlock()
	if paths == nil {
		return real
	}
	return paths.ToVirtual(real)
}

func (s *DefaultServices) FromVirtualPath(pluginID, virtual string) string {
	s.mu.Lock()
	paths := s.pathByID[pluginID]
	s.mu.Unlock()
	if paths == nil {
		return virtual
	}
	return paths.FromVirtual(virtual)
}

func (s *DefaultServices) Log(pluginID, message, level string, fields map[string]interface{}) {
	args := make([]any, 0, len(fields)*2+2)
	args = append(args, "plugin", pluginID)
	for k, v := range fields {
		args = append(args, k, v)
	}
	switch strings.ToLower(level) {
	case "debug":
		s.logger.Debug(message, args...)
	case "warn":
		s.logger.Warn(message, args...)
	case "error":
		s.logger.Error(message, args...)
	default:
		s.logger.Info(message, args...)
	}
}

func pathListSeparator() rune {
	// Plugins always declare POSIX-style tool installs; Windows shims
	// translate at the shim layer (spec.md §9 open question on shim
	// launcher contract), so the separator here is fixed.
	return ':'
}

// errorsAs is a tiny indirection so this file only imports errors.As
// where needed, kept local to avoid importing "errors" for one call site
// next to the stdlib exec import.
func errorsAs(err error, target **exec.ExitError) bool {
	for err != nil {
		if e, ok := err.(*exec.ExitError); ok {
			*target = e
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

var _ = time.Second // reserved for future timeout plumbing (http client is configured by the caller)
