package install

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/polytool-dev/polytool/internal/application/errors"
	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/application/services"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// DefaultWorkerCount bounds how many installs run concurrently within a
// single wave when the caller does not override it (spec.md §5's
// "bounded worker pool").
const DefaultWorkerCount = 4

// PluginLoaderFunc resolves and compiles the plugin backing a tool
// context, the same shape InstallService.InstallOne expects.
type PluginLoaderFunc func(ctx context.Context, id values.Id) (ports.Plugin, error)

// Pipeline drives InstallService.InstallOne across a Graph's levels,
// running each level's nodes concurrently through a bounded worker pool
// and moving to the next level only once the current one has fully
// drained (grounded on the teacher's engine.executeControlsWithWorkerPool,
// simplified from a dynamic ready-queue to strict level barriers since
// spec.md §5 requires waves to run in strict order, not opportunistically
// as individual nodes free up).
type Pipeline struct {
	install      *services.InstallService
	loadPlugin   PluginLoaderFunc
	workerCount  int
	installedMu  sync.RWMutex
	installedSet map[values.ToolContext]bool
	failedSet    map[values.ToolContext]bool
}

// NewPipeline constructs a Pipeline. workerCount <= 0 falls back to
// DefaultWorkerCount.
func NewPipeline(install *services.InstallService, loadPlugin PluginLoaderFunc, workerCount int) *Pipeline {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Pipeline{
		install:      install,
		loadPlugin:   loadPlugin,
		workerCount:  workerCount,
		installedSet: make(map[values.ToolContext]bool),
		failedSet:    make(map[values.ToolContext]bool),
	}
}

// Run builds a graph from nodes and installs them wave by wave, honoring
// req.Force and req.Cwd for every node. A node with no failed dependency
// is attempted on its own merits and its failure does not abort the
// batch — independent siblings in the same or a later wave still run
// (spec.md §7's no-cascading-failure stance). But a node whose
// dependency failed in an earlier wave is never attempted at all: it is
// reported with a ReqFailed outcome and, transitively, so is anything
// that depends on it, since running it against a missing or broken
// prerequisite would not be a meaningful install attempt.
func (p *Pipeline) Run(ctx context.Context, nodes []Node, req dto.InstallRequest) (dto.InstallResult, error) {
	levels, err := BuildGraph(nodes)
	if err != nil {
		return dto.InstallResult{}, err
	}

	result := dto.InstallResult{}
	var resultMu sync.Mutex

	for _, level := range levels {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(p.workerCount)

		for _, node := range level.Nodes {
			node := node

			if failedDep, blocked := p.blockedBy(node.Dependencies); blocked {
				outcome := dto.InstallOutcome{
					Context: node.Context,
					Error:   reqFailedError(node.Context, failedDep),
				}
				resultMu.Lock()
				result.Outcomes = append(result.Outcomes, outcome)
				resultMu.Unlock()
				p.markFailed(node.Context)
				continue
			}

			group.Go(func() error {
				outcome, err := p.install.InstallOne(groupCtx, node.Context, node.Spec, req.Cwd, req.Force, func(ctx context.Context) (ports.Plugin, error) {
					return p.loadPlugin(ctx, node.Context.Id)
				})
				if err != nil {
					return err
				}

				resultMu.Lock()
				result.Outcomes = append(result.Outcomes, outcome)
				resultMu.Unlock()

				if outcome.Error == nil {
					p.markInstalled(node.Context)
				} else {
					p.markFailed(node.Context)
				}
				return nil
			})
		}

		if err := group.Wait(); err != nil {
			return result, err
		}
	}

	return result, nil
}

// blockedBy reports the first dependency in deps that failed (or was
// itself skipped as ReqFailed) in an earlier wave, if any.
func (p *Pipeline) blockedBy(deps []values.ToolContext) (values.ToolContext, bool) {
	p.installedMu.RLock()
	defer p.installedMu.RUnlock()
	for _, dep := range deps {
		if p.failedSet[dep] {
			return dep, true
		}
	}
	return values.ToolContext{}, false
}

func reqFailedError(ctx, failedDep values.ToolContext) error {
	return apperrors.NewInstallError(
		apperrors.CodeInstallReqFailed,
		string(ctx.Id),
		"",
		fmt.Sprintf("prerequisite %s failed to install", failedDep),
		nil,
	)
}

func (p *Pipeline) markInstalled(ctx values.ToolContext) {
	p.installedMu.Lock()
	defer p.installedMu.Unlock()
	p.installedSet[ctx] = true
}

func (p *Pipeline) markFailed(ctx values.ToolContext) {
	p.installedMu.Lock()
	defer p.installedMu.Unlock()
	p.failedSet[ctx] = true
}

// IsInstalled reports whether ctx completed installation during this
// pipeline run, read under a shared lock since multiple wave workers may
// query it concurrently (spec.md §5: "the install graph is shared across
// workers through reader-writer locks on its installed/not-installed
// sets").
func (p *Pipeline) IsInstalled(ctx values.ToolContext) bool {
	p.installedMu.RLock()
	defer p.installedMu.RUnlock()
	return p.installedSet[ctx]
}
