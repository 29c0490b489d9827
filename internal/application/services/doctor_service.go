package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// DiagnosticStatus is the severity a single doctor check reports.
type DiagnosticStatus string

const (
	DiagnosticOK    DiagnosticStatus = "ok"
	DiagnosticWarn  DiagnosticStatus = "warn"
	DiagnosticError DiagnosticStatus = "error"
)

// Diagnostic is one row of `poly doctor`'s output: a code, a one-line
// summary, and — when actionable — a remediation hint (spec.md §4.7,
// "user-visible behavior"). A failing diagnostic never aborts the rest
// of the battery; callers run every check and report an aggregated
// summary.
type Diagnostic struct {
	Code       string
	Status     DiagnosticStatus
	Summary    string
	Remediation string
}

// DoctorService runs environment sanity checks: store writability, PATH
// containing the shim directory, and network reachability (SPEC_FULL.md
// §3). Run does not load any plugin; CheckPlugin checks one tool's
// plugin on its own.
type DoctorService struct {
	inventory  ports.Inventory
	pluginHost ports.PluginHost
	httpClient *http.Client
}

// NewDoctorService wires DoctorService against the inventory and plugin
// host ports, plus an HTTP client for the offline-reachability probe.
func NewDoctorService(inventory ports.Inventory, pluginHost ports.PluginHost, httpClient *http.Client) *DoctorService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &DoctorService{inventory: inventory, pluginHost: pluginHost, httpClient: httpClient}
}

// Run executes every check and returns the full battery, in a fixed
// order, regardless of individual failures.
func (s *DoctorService) Run(ctx context.Context) []Diagnostic {
	return []Diagnostic{
		s.checkStoreWritable(),
		s.checkShimsOnPath(),
		s.checkOffline(ctx),
	}
}

func (s *DoctorService) checkStoreWritable() Diagnostic {
	root := s.inventory.StoreRoot()
	probe := filepath.Join(root, ".doctor-write-probe")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Diagnostic{
			Code:        "store.writable",
			Status:      DiagnosticError,
			Summary:     fmt.Sprintf("store root %s does not exist and could not be created: %v", root, err),
			Remediation: fmt.Sprintf("check permissions on %s or its parent", root),
		}
	}
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil { //nolint:gosec // G306: a throwaway probe file inside the store root
		return Diagnostic{
			Code:        "store.writable",
			Status:      DiagnosticError,
			Summary:     fmt.Sprintf("store root %s is not writable: %v", root, err),
			Remediation: fmt.Sprintf("check permissions on %s", root),
		}
	}
	_ = os.Remove(probe)
	return Diagnostic{Code: "store.writable", Status: DiagnosticOK, Summary: fmt.Sprintf("store root %s is writable", root)}
}

func (s *DoctorService) checkShimsOnPath() Diagnostic {
	shimDir := filepath.Join(s.inventory.StoreRoot(), "shims")
	pathEnv := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(pathEnv) {
		if filepath.Clean(entry) == filepath.Clean(shimDir) {
			return Diagnostic{Code: "path.shims", Status: DiagnosticOK, Summary: fmt.Sprintf("%s is on PATH", shimDir)}
		}
	}
	return Diagnostic{
		Code:        "path.shims",
		Status:      DiagnosticWarn,
		Summary:     fmt.Sprintf("%s is not on PATH", shimDir),
		Remediation: fmt.Sprintf("add %s to PATH so installed tools resolve without the engine shim wrapper", shimDir),
	}
}

func (s *DoctorService) checkOffline(ctx context.Context) Diagnostic {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://github.com", nil)
	if err != nil {
		return Diagnostic{Code: "net.reachable", Status: DiagnosticWarn, Summary: fmt.Sprintf("could not build reachability probe: %v", err)}
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Diagnostic{
			Code:        "net.reachable",
			Status:      DiagnosticWarn,
			Summary:     fmt.Sprintf("network probe failed: %v", err),
			Remediation: "if this is expected, enable settings.offline to suppress network-dependent operations",
		}
	}
	defer func() { _ = resp.Body.Close() }()
	return Diagnostic{Code: "net.reachable", Status: DiagnosticOK, Summary: "network reachable"}
}

// CheckPlugin compiles id's wasm bytes as a one-off diagnostic, useful
// for verifying a single tool's plugin is loadable without running a
// full resolve or install (SPEC_FULL.md §3, run ad hoc from `poly
// doctor --plugin`).
func (s *DoctorService) CheckPlugin(ctx context.Context, id values.Id, wasmBytes []byte) Diagnostic {
	plugin, err := s.pluginHost.Compile(ctx, id, wasmBytes)
	if err != nil {
		return Diagnostic{
			Code:        "plugin.loadable",
			Status:      DiagnosticError,
			Summary:     fmt.Sprintf("plugin %s failed to compile: %v", id, err),
			Remediation: "check the plugin's locator and that its wasm artifact is a valid module",
		}
	}
	defer func() { _ = plugin.Close(ctx) }()
	return Diagnostic{Code: "plugin.loadable", Status: DiagnosticOK, Summary: fmt.Sprintf("plugin %s compiles", id)}
}

// Summarize renders a short human-readable rollup of a diagnostic batch,
// one line per diagnostic in the order given.
func Summarize(diags []Diagnostic) string {
	var sb strings.Builder
	for _, d := range diags {
		fmt.Fprintf(&sb, "[%s] %s: %s", d.Status, d.Code, d.Summary)
		if d.Remediation != "" {
			fmt.Fprintf(&sb, " (%s)", d.Remediation)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
