package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/services"
	"github.com/polytool-dev/polytool/internal/domain/values"
	"github.com/polytool-dev/polytool/internal/infrastructure/install"
)

func init() {
	rootCmd.AddCommand(newInstallCmd())
}

func newInstallCmd() *cobra.Command {
	var force bool
	var pinResult bool
	var workers int

	cmd := &cobra.Command{
		Use:   "install [tool[@spec]...]",
		Short: "Install one or more tools",
		Long: `Install installs the tools named on the command line, or every tool
pinned somewhere in the ".prototools" stack rooted at the current
directory when no tools are named. Each "tool" is a bare id or
"backend:id", optionally followed by "@spec" to override its configured
version for this run.`,
		Example: `  poly install
  poly install node@20 go@1.22
  poly install --force node`,
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			nodes, err := buildInstallNodes(cc, args)
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				fmt.Println("nothing configured to install")
				return nil
			}

			pipeline := cc.Container.NewPipeline(cc.Cwd, workers)
			result, err := pipeline.Run(cc.Context, nodes, dto.InstallRequest{
				RequestID: uuid.NewString(),
				Cwd:       cc.Cwd,
				Force:     force,
				PinResult: pinResult,
			})
			if err != nil {
				return fmt.Errorf("running install pipeline: %w", err)
			}

			printInstallResult(result)
			if result.Failed() {
				return fmt.Errorf("one or more tools failed to install")
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&force, "force", false, "reinstall even if already present")
	cmd.Flags().BoolVar(&pinResult, "pin", false, "accepted and passed to the install request; no pin is written back after install")
	cmd.Flags().IntVar(&workers, "workers", install.DefaultWorkerCount, "max concurrent installs per wave")

	return cmd
}

// buildInstallNodes resolves the set of tool contexts to install. With
// explicit arguments, each is parsed as "[backend:]id[@spec]". With no
// arguments, every version pinned anywhere in the config stack is
// installed. Dependency edges between tools are left empty: the
// prerequisites a plugin lists in its register_tool output are not read
// here, so every install runs as a single wave.
func buildInstallNodes(cc *CommandContext, args []string) ([]install.Node, error) {
	if len(args) > 0 {
		nodes := make([]install.Node, 0, len(args))
		for _, arg := range args {
			tc, spec, err := parseInstallArg(arg)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, install.Node{Context: tc, Spec: spec})
		}
		return nodes, nil
	}

	stack, err := cc.Container.ConfigStack().Discover(cc.Context, cc.Cwd)
	if err != nil {
		return nil, fmt.Errorf("discovering config stack: %w", err)
	}

	// stack is most-specific-first; ConfigMerger wants least-specific-first
	// so a more specific layer's version wins.
	var partials []*entities.PartialConfig
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Config != nil {
			partials = append(partials, stack[i].Config)
		}
	}

	merged := services.NewConfigMerger().Merge(partials)

	nodes := make([]install.Node, 0, len(merged.Versions))
	for tc, spec := range merged.Versions {
		nodes = append(nodes, install.Node{Context: tc, Spec: spec})
	}
	return nodes, nil
}

// parseInstallArg splits a "[backend:]id[@spec]" argument into its tool
// context and version spec, defaulting the spec to the wildcard "*"
// requirement when omitted.
func parseInstallArg(arg string) (values.ToolContext, values.UnresolvedSpec, error) {
	raw := arg
	specRaw := "*"
	if idx := strings.IndexByte(raw, '@'); idx >= 0 {
		specRaw = raw[idx+1:]
		raw = raw[:idx]
	}
	tc, err := parseToolContext(raw)
	if err != nil {
		return values.ToolContext{}, values.UnresolvedSpec{}, err
	}
	spec, err := values.ParseUnresolvedSpec(specRaw)
	if err != nil {
		return values.ToolContext{}, values.UnresolvedSpec{}, fmt.Errorf("parsing spec %q for %s: %w", specRaw, raw, err)
	}
	return tc, spec, nil
}

func printInstallResult(result dto.InstallResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSTATUS\tVERSION")
	for _, o := range result.Outcomes {
		status := "installed"
		version := o.Resolved.Format()
		switch {
		case o.Error != nil:
			status = "error: " + o.Error.Error()
			version = "-"
		case o.Skipped:
			status = "already installed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Context.String(), status, version)
	}
	_ = w.Flush()
}
