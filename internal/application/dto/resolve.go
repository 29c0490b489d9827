// Package dto holds the request/response shapes application services
// accept and return — kept separate from domain entities so the domain
// stays free of presentation or transport concerns (mirrors the
// teacher's internal/application/dto split).
package dto

import (
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// ResolveRequest asks the resolver for the version a tool context would
// use right now, without installing anything.
type ResolveRequest struct {
	RequestID string
	Context   values.ToolContext
	Cwd       string
}

// DetectedFrom records where a resolved spec came from, for `poly status`
// / `poly detect` output (spec.md §4.4).
type DetectedFrom struct {
	Source string // env-var | pinned-config | ecosystem-file
	Origin string // env var name, config file path, or ecosystem file path
}

// ResolveResult is the outcome of a resolve-only operation.
type ResolveResult struct {
	Resolved values.ResolvedSpec
	From     DetectedFrom
}
