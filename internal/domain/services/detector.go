package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// EcosystemFile is a single file whose presence and content may yield a
// detected version spec, read by the caller (infrastructure has the
// filesystem access) and handed to the detector pre-parsed.
type EcosystemFile struct {
	Name    string
	Spec    values.UnresolvedSpec
	FoundAt string // path of the file
}

// DetectionSource reports where a detected spec came from, for
// `<TOOL>_DETECTED_FROM` (spec.md §6).
type DetectionSource string

const (
	SourceEnvVar      DetectionSource = "env-var"
	SourcePinned      DetectionSource = "pinned-config"
	SourceEcosystem   DetectionSource = "ecosystem-file"
)

// DetectionResult is the outcome of Detector.Detect.
type DetectionResult struct {
	Spec   values.UnresolvedSpec
	Source DetectionSource
	Origin string // config path or ecosystem file path the spec came from
}

// Detector implements the detection strategies of spec.md §4.4: a
// DOMAIN SERVICE walking an already-discovered config stack (supplied by
// the caller as an ordered, most-specific-first slice) plus any
// ecosystem files the plugin located, without touching the filesystem
// itself.
type Detector struct{}

// NewDetector constructs a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// EnvVarName derives the `<PREFIX>_VERSION` environment variable name
// for a tool id, e.g. "node" -> "NODE_VERSION".
func EnvVarName(id values.Id) string {
	return strings.ToUpper(strings.ReplaceAll(string(id), "-", "_")) + "_VERSION"
}

// Detect walks stack (most-specific first) applying strategy, honoring
// the environment variable override which takes highest priority
// regardless of strategy (spec.md §4.4).
func (d *Detector) Detect(
	ctx values.ToolContext,
	strategy entities.DetectStrategy,
	stack []*entities.ConfigFile,
	ecosystemFiles []EcosystemFile,
	envValue string,
) (DetectionResult, error) {
	if envValue != "" {
		spec, err := values.ParseUnresolvedSpec(envValue)
		if err != nil {
			return DetectionResult{}, fmt.Errorf("parsing %s: %w", EnvVarName(ctx.Id), err)
		}
		return DetectionResult{Spec: spec, Source: SourceEnvVar, Origin: EnvVarName(ctx.Id)}, nil
	}

	switch strategy {
	case entities.DetectOnlyPrototools:
		return d.detectPinned(ctx, stack)

	case entities.DetectFirstAvailable:
		for _, file := range stack {
			if result, ok := d.pinnedAt(ctx, file); ok {
				return result, nil
			}
			if result, ok := d.ecosystemAt(ecosystemFiles, file.Path); ok {
				return result, nil
			}
		}
		return DetectionResult{}, fmt.Errorf("no version could be detected for %s", ctx)

	case entities.DetectPreferPrototools:
		if result, err := d.detectPinned(ctx, stack); err == nil {
			return result, nil
		}
		for _, ef := range ecosystemFiles {
			return DetectionResult{Spec: ef.Spec, Source: SourceEcosystem, Origin: ef.FoundAt}, nil
		}
		return DetectionResult{}, fmt.Errorf("no version could be detected for %s", ctx)

	default:
		return DetectionResult{}, fmt.Errorf("unknown detect strategy %q", strategy)
	}
}

func (d *Detector) detectPinned(ctx values.ToolContext, stack []*entities.ConfigFile) (DetectionResult, error) {
	for _, file := range stack {
		if result, ok := d.pinnedAt(ctx, file); ok {
			return result, nil
		}
	}
	return DetectionResult{}, fmt.Errorf("no pinned version found for %s in config stack", ctx)
}

func (d *Detector) pinnedAt(ctx values.ToolContext, file *entities.ConfigFile) (DetectionResult, bool) {
	if file == nil || file.Config == nil {
		return DetectionResult{}, false
	}
	spec, ok := file.Config.Versions[ctx]
	if !ok {
		return DetectionResult{}, false
	}
	return DetectionResult{Spec: spec, Source: SourcePinned, Origin: file.Path}, true
}

func (d *Detector) ecosystemAt(files []EcosystemFile, configPath string) (DetectionResult, bool) {
	dir := filepath.Dir(configPath)
	for _, ef := range files {
		if filepath.Dir(ef.FoundAt) == dir {
			return DetectionResult{Spec: ef.Spec, Source: SourceEcosystem, Origin: ef.FoundAt}, true
		}
	}
	return DetectionResult{}, false
}
