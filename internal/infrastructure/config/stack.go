package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/services"
)

const prototoolsFilename = ".prototools"

// Stack implements ports.ConfigStack by walking from a working directory
// up to the user's home (or the filesystem root), then appending the
// store-root global file last, per spec.md §4.2 "Discovery".
type Stack struct {
	storeRoot string
	envMode   string // suffix for `.prototools.<env>`, empty when unset
}

// NewStack constructs a Stack rooted at storeRoot (the Global config
// file's directory) with an optional active env mode.
func NewStack(storeRoot, envMode string) *Stack {
	return &Stack{storeRoot: storeRoot, envMode: envMode}
}

// Discover walks upward from cwd, returning the ordered stack of
// ConfigFile entries from most-specific to least-specific, with the
// store-root Global file appended last. Every engine-self-pin at a
// Global or User layer is projected away before it is returned, so
// callers never see a pin they are not allowed to act on.
func (s *Stack) Discover(ctx context.Context, cwd string) ([]*entities.ConfigFile, error) {
	_ = ctx

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	abs, err := filepath.Abs(cwd)
	if err != nil {
		return nil, err
	}

	var stack []*entities.ConfigFile
	dir := abs
	underHome := home != "" && isDescendantOf(abs, home)

	for {
		loc := entities.LocationLocal
		if underHome && dir == home {
			loc = entities.LocationUser
		}

		if s.envMode != "" {
			envFile, err := readFile(filepath.Join(dir, prototoolsFilename+"."+s.envMode), loc)
			if err != nil {
				return nil, err
			}
			stack = append(stack, envFile)
		}

		file, err := readFile(filepath.Join(dir, prototoolsFilename), loc)
		if err != nil {
			return nil, err
		}
		stack = append(stack, file)

		if underHome && dir == home {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	globalFile, err := readFile(filepath.Join(s.storeRoot, prototoolsFilename), entities.LocationGlobal)
	if err != nil {
		return nil, err
	}
	stack = append(stack, globalFile)

	for _, f := range stack {
		services.ApplyEngineProjection(f)
	}

	return stack, nil
}

// Load reads a single config file at an explicit path and location,
// used by pin/alias writes that target one stack layer directly.
func (s *Stack) Load(ctx context.Context, path string, loc entities.Location) (*entities.ConfigFile, error) {
	_ = ctx
	file, err := readFile(path, loc)
	if err != nil {
		return nil, err
	}
	services.ApplyEngineProjection(file)
	return file, nil
}

// Save writes file.Config back to file.Path.
func (s *Stack) Save(ctx context.Context, file *entities.ConfigFile) error {
	_ = ctx
	if err := os.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
		return err
	}
	return writeFile(file)
}

func isDescendantOf(path, ancestor string) bool {
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.' && !filepath.IsAbs(rel))
}
