package dto

import (
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// PinRequest writes or removes a version pin for a tool at a chosen
// config location (SPEC_FULL.md §3, moonrepo/proto's pin/unpin commands).
type PinRequest struct {
	Id       values.Id
	Backend  values.Backend
	Spec     string // empty for unpin
	Location entities.Location
	Cwd      string
}

// AliasRequest sets, removes, or lists an alias on a tool's config
// entry (SPEC_FULL.md §3).
type AliasRequest struct {
	Id       values.Id
	Alias    string
	Spec     string // empty when removing
	Location entities.Location
	Cwd      string
}
