package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/polytool-dev/polytool/internal/application/errors"
	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

const prototoolsFilename = ".prototools"

// PinService writes and removes version pins and aliases in a chosen
// `.prototools` file, enforcing the engine-self-pin suppression rule
// (spec.md §4.3) at write time rather than only projecting it away at
// merge time, so a rejected pin never round-trips through a file on
// disk at all.
type PinService struct {
	configStack ports.ConfigStack
	inventory   ports.Inventory
}

// NewPinService wires PinService against the config stack and inventory
// ports (the latter only for the store root's Global location).
func NewPinService(configStack ports.ConfigStack, inventory ports.Inventory) *PinService {
	return &PinService{configStack: configStack, inventory: inventory}
}

// Pin writes req.Spec as the pinned version for req.Id at req.Location,
// or removes the pin entirely when req.Spec is empty.
func (s *PinService) Pin(ctx context.Context, req dto.PinRequest) error {
	if err := s.rejectEngineSelfPin(req.Id, req.Location); err != nil {
		return err
	}

	path := s.pathFor(req.Cwd, req.Location)
	file, err := s.configStack.Load(ctx, path, req.Location)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	if file.Config == nil {
		file.Config = entities.NewPartialConfig()
	}

	tc := values.ToolContext{Backend: req.Backend, Id: req.Id}

	if req.Spec == "" {
		delete(file.Config.Versions, tc)
	} else {
		spec, err := values.ParseUnresolvedSpec(req.Spec)
		if err != nil {
			return apperrors.NewConfigError(apperrors.CodeConfigParse, path, fmt.Sprintf("invalid spec %q for %s", req.Spec, req.Id), err)
		}
		file.Config.Versions[tc] = spec
	}

	if err := s.configStack.Save(ctx, file); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// SetAlias writes or removes req.Alias pointing at req.Spec in the
// `tools.<id>.aliases` table of the config file at req.Location.
func (s *PinService) SetAlias(ctx context.Context, req dto.AliasRequest) error {
	path := s.pathFor(req.Cwd, req.Location)
	file, err := s.configStack.Load(ctx, path, req.Location)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	if file.Config == nil {
		file.Config = entities.NewPartialConfig()
	}

	settings := file.Config.Tools[req.Id]
	if settings.Aliases == nil {
		settings.Aliases = make(map[string]values.UnresolvedSpec)
	}

	if req.Spec == "" {
		delete(settings.Aliases, req.Alias)
	} else {
		spec, err := values.ParseUnresolvedSpec(req.Spec)
		if err != nil {
			return apperrors.NewConfigError(apperrors.CodeConfigParse, path, fmt.Sprintf("invalid alias target %q for %s", req.Spec, req.Id), err)
		}
		settings.Aliases[req.Alias] = spec
	}
	file.Config.Tools[req.Id] = settings

	if err := s.configStack.Save(ctx, file); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// ListAliases returns the aliases configured for id across every
// discovered stack layer, merged into one map in which a more specific
// layer's alias wins.
func (s *PinService) ListAliases(ctx context.Context, cwd string, id values.Id) (map[string]values.UnresolvedSpec, error) {
	stack, err := s.configStack.Discover(ctx, cwd)
	if err != nil {
		return nil, fmt.Errorf("discovering config stack: %w", err)
	}
	merged := make(map[string]values.UnresolvedSpec)
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		if f.Config == nil {
			continue
		}
		settings, ok := f.Config.Tools[id]
		if !ok {
			continue
		}
		for alias, spec := range settings.Aliases {
			merged[alias] = spec
		}
	}
	return merged, nil
}

// rejectEngineSelfPin enforces that the engine's own identifier can
// never be pinned from a Global or User location: doing so would cause
// every invocation anywhere on the machine to re-resolve and
// potentially re-install the engine itself.
func (s *PinService) rejectEngineSelfPin(id values.Id, loc entities.Location) error {
	if !id.IsEngine() {
		return nil
	}
	if loc == entities.LocationGlobal || loc == entities.LocationUser {
		return apperrors.NewConfigError(apperrors.CodeConfigSchema, "", fmt.Sprintf("refusing to pin %s at %s location", id, loc), nil)
	}
	return nil
}

// pathFor computes the `.prototools` path a pin/alias write targets for
// the given location (spec.md §3's Global/Local/User distinction).
func (s *PinService) pathFor(cwd string, loc entities.Location) string {
	switch loc {
	case entities.LocationGlobal:
		return filepath.Join(s.inventory.StoreRoot(), prototoolsFilename)
	case entities.LocationUser:
		return filepath.Join(userHomeDir(), prototoolsFilename)
	default:
		return filepath.Join(cwd, prototoolsFilename)
	}
}

// userHomeDir resolves the user's home directory, falling back to "."
// if it cannot be determined (mirrors the teacher's defensive posture
// around os.UserHomeDir at the edges of the config layer).
func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
