// Package services implements the application-layer use cases:
// orchestration over the ports package's interfaces and the domain's
// resolver/detector/merger (mirrors the teacher's
// internal/application/services layer). Most I/O goes through the ports;
// some services also read files, environment variables or the network
// directly.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/services"
	"github.com/polytool-dev/polytool/internal/domain/values"
	"github.com/polytool-dev/polytool/wireformat"
)

// ResolveService answers "what version would this tool context use right
// now" without installing anything (SPEC_FULL.md §3's detect/status/list
// read paths).
type ResolveService struct {
	configStack ports.ConfigStack
	pluginHost  ports.PluginHost
	detector    *services.Detector
	resolver    *services.Resolver
}

// NewResolveService wires the domain services against the supplied ports.
func NewResolveService(configStack ports.ConfigStack, pluginHost ports.PluginHost) *ResolveService {
	return &ResolveService{
		configStack: configStack,
		pluginHost:  pluginHost,
		detector:    services.NewDetector(),
		resolver:    services.NewResolver(),
	}
}

// Resolve runs detection against the config stack rooted at req.Cwd, then
// resolves the detected spec against the tool's plugin-supplied version
// catalog.
func (s *ResolveService) Resolve(ctx context.Context, req dto.ResolveRequest, wasmBytes []byte) (dto.ResolveResult, error) {
	stack, err := s.configStack.Discover(ctx, req.Cwd)
	if err != nil {
		return dto.ResolveResult{}, fmt.Errorf("discovering config stack: %w", err)
	}

	strategy := s.detectStrategy(stack)

	plugin, err := s.pluginHost.Compile(ctx, req.Context.Id, wasmBytes)
	if err != nil {
		return dto.ResolveResult{}, fmt.Errorf("compiling plugin %s: %w", req.Context.Id, err)
	}

	ecosystemFiles, err := s.detectVersionFiles(ctx, plugin, req.Cwd)
	if err != nil {
		return dto.ResolveResult{}, err
	}

	envValue := os.Getenv(services.EnvVarName(req.Context.Id))

	detection, err := s.detector.Detect(req.Context, strategy, stack, ecosystemFiles, envValue)
	if err != nil {
		return dto.ResolveResult{}, fmt.Errorf("detecting version for %s: %w", req.Context.Id, err)
	}

	loadOutput, err := s.loadVersions(ctx, plugin)
	if err != nil {
		return dto.ResolveResult{}, err
	}

	localAliases := s.localAliases(stack, req.Context.Id)

	resolved, err := s.resolver.Resolve(detection.Spec, loadOutput, localAliases)
	if err != nil {
		return dto.ResolveResult{}, fmt.Errorf("resolving %s: %w", req.Context.Id, err)
	}

	return dto.ResolveResult{
		Resolved: resolved,
		From:     dto.DetectedFrom{Source: string(detection.Source), Origin: detection.Origin},
	}, nil
}

func (s *ResolveService) detectStrategy(stack []*entities.ConfigFile) entities.DetectStrategy {
	for _, f := range stack {
		if f.Config != nil && f.Config.Settings.DetectStrategy != "" {
			return f.Config.Settings.DetectStrategy
		}
	}
	return entities.DetectFirstAvailable
}

func (s *ResolveService) localAliases(stack []*entities.ConfigFile, id values.Id) map[string]values.UnresolvedSpec {
	for _, f := range stack {
		if f.Config == nil {
			continue
		}
		if settings, ok := f.Config.Tools[id]; ok && len(settings.Aliases) > 0 {
			return settings.Aliases
		}
	}
	return nil
}

func (s *ResolveService) detectVersionFiles(ctx context.Context, plugin ports.Plugin, cwd string) ([]services.EcosystemFile, error) {
	raw, err := plugin.Call(ctx, "detect_version_files", struct{}{})
	if err != nil {
		return nil, fmt.Errorf("calling detect_version_files on %s: %w", plugin.ID(), err)
	}
	var out wireformat.DetectVersionFilesOutputWire
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parsing detect_version_files output for %s: %w", plugin.ID(), err)
	}

	var files []services.EcosystemFile
	for _, name := range out.Filenames {
		path := cwd + "/" + name
		content, err := os.ReadFile(path) //nolint:gosec // G304: plugin-declared ecosystem filenames under the active cwd
		if err != nil {
			continue
		}
		parseRaw, err := plugin.Call(ctx, "parse_version_file", wireformat.ParseVersionFileInputWire{
			Filename: name,
			Content:  string(content),
		})
		if err != nil {
			continue
		}
		var parsed wireformat.ParseVersionFileOutputWire
		if err := json.Unmarshal(parseRaw, &parsed); err != nil || parsed.Spec == "" {
			continue
		}
		spec, err := values.ParseUnresolvedSpec(parsed.Spec)
		if err != nil {
			continue
		}
		files = append(files, services.EcosystemFile{Name: name, Spec: spec, FoundAt: path})
	}
	return files, nil
}

func (s *ResolveService) loadVersions(ctx context.Context, plugin ports.Plugin) (services.LoadVersionsOutput, error) {
	raw, err := plugin.Call(ctx, "load_versions", struct{}{})
	if err != nil {
		return services.LoadVersionsOutput{}, fmt.Errorf("calling load_versions on %s: %w", plugin.ID(), err)
	}
	var wire wireformat.LoadVersionsOutputWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return services.LoadVersionsOutput{}, fmt.Errorf("parsing load_versions output for %s: %w", plugin.ID(), err)
	}
	return fromLoadVersionsWire(wire)
}
