package dto

import "github.com/polytool-dev/polytool/internal/domain/values"

// InstallRequest asks the install pipeline to bring one or more tool
// contexts up to their resolved version (spec.md §4.5).
type InstallRequest struct {
	RequestID  string
	Contexts   []values.ToolContext
	Cwd        string
	Force      bool // reinstall even if already present
	PinResult  bool // set by `install --pin`; InstallService does not read it
}

// InstallOutcome reports the result for a single tool context.
type InstallOutcome struct {
	Context  values.ToolContext
	Resolved values.ResolvedSpec
	Skipped  bool // already installed, nothing to do
	Error    error
}

// InstallResult aggregates the outcome of an install request across
// every requested tool context.
type InstallResult struct {
	Outcomes []InstallOutcome
}

// Failed reports whether any outcome in the result carried an error.
func (r InstallResult) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Error != nil {
			return true
		}
	}
	return false
}
