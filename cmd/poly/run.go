package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/wireformat"
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <tool> [-- args...]",
		Short: "Run a tool's resolved version",
		Long: `Resolves the version <tool> would use in the current directory, then
runs its primary executable as a child process with the remaining
arguments and poly's stdio, and exits with the child's exit code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, err := parseToolContext(args[0])
			if err != nil {
				return err
			}
			toolArgs := args[1:]

			wasmBytes, err := cc.Container.LoadPluginBytes(cc.Context, cc.Cwd, tc.Id)
			if err != nil {
				return err
			}
			resolveResult, err := cc.Container.ResolveService().Resolve(cc.Context, dto.ResolveRequest{
				RequestID: uuid.NewString(),
				Context:   tc,
				Cwd:       cc.Cwd,
			}, wasmBytes)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", tc, err)
			}
			version := resolveResult.Resolved.Format()

			plugin, err := cc.Container.ResolvePlugin(cc.Context, cc.Cwd, tc.Id)
			if err != nil {
				return err
			}
			defer func() { _ = plugin.Close(cc.Context) }()

			locateRaw, err := plugin.Call(cc.Context, "locate_executables", struct{}{})
			if err != nil {
				return fmt.Errorf("calling locate_executables on %s: %w", tc.Id, err)
			}
			var located wireformat.LocateExecutablesOutputWire
			if err := json.Unmarshal(locateRaw, &located); err != nil {
				return fmt.Errorf("parsing locate_executables output for %s: %w", tc.Id, err)
			}
			if located.Primary == "" {
				return fmt.Errorf("%s declares no primary executable", tc.Id)
			}

			toolDir := cc.Container.Inventory().ToolDir(tc.Id, version)
			binPath := filepath.Join(toolDir, located.Primary)
			if _, err := os.Stat(binPath); err != nil {
				return fmt.Errorf("%s %s is not installed at %s: %w", tc, version, binPath, err)
			}

			return execTool(binPath, toolArgs)
		}),
	}
}

// execTool runs binPath to completion with the host's stdio attached and
// exits poly with its exit code, the same behavior a shim in the
// store's shims directory performs.
func execTool(binPath string, args []string) error {
	cmd := exec.Command(binPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		return fmt.Errorf("executing %s: %w", binPath, err)
	}
	os.Exit(0)
	return nil
}
