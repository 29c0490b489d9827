package pluginloader

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// Auditor scans a locally-developed File-locator plugin's companion
// source for accidentally committed credentials before it is trusted,
// logging a warning but never blocking the load (SPEC_FULL.md's
// domain-stack assignment for gitleaks).
type Auditor struct {
	detector *detect.Detector
	logger   *slog.Logger
}

// NewAuditor constructs an Auditor using gitleaks' built-in pattern set.
// A nil return with a non-nil error means the caller should proceed
// without auditing rather than fail the load.
func NewAuditor(logger *slog.Logger) (*Auditor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(config.DefaultConfig)); err != nil {
		return nil, err
	}

	var vc config.ViperConfig
	if err := v.Unmarshal(&vc); err != nil {
		return nil, err
	}
	cfg, err := vc.Translate()
	if err != nil {
		return nil, err
	}

	return &Auditor{detector: detect.NewDetector(cfg), logger: logger}, nil
}

// AuditPath scans path for secret-shaped content, logging a warning for
// every finding. It never returns an error: a failed scan should not
// block loading a plugin the user explicitly pointed at.
func (a *Auditor) AuditPath(path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a plugin file the caller already resolved
	if err != nil {
		return
	}

	findings := a.detector.Detect(detect.Fragment{Raw: string(data), FilePath: path})
	for _, finding := range findings {
		a.logger.Warn("possible secret in plugin source",
			"path", path,
			"rule", finding.RuleID,
			"line", finding.StartLine,
		)
	}
}
