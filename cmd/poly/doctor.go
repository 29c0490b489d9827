package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polytool-dev/polytool/internal/application/services"
)

func init() {
	rootCmd.AddCommand(newDoctorCmd())
}

func newDoctorCmd() *cobra.Command {
	var pluginID string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment sanity checks",
		Long: `Checks that the store is writable, its shims directory is on PATH, and
the network is reachable. With --plugin, also verifies that one tool's
plugin compiles.`,
		Args: cobra.NoArgs,
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			diags := cc.Container.DoctorService().Run(cc.Context)

			if pluginID != "" {
				tc, err := parseToolContext(pluginID)
				if err != nil {
					return err
				}
				wasmBytes, err := cc.Container.LoadPluginBytes(cc.Context, cc.Cwd, tc.Id)
				if err != nil {
					return err
				}
				diags = append(diags, cc.Container.DoctorService().CheckPlugin(cc.Context, tc.Id, wasmBytes))
			}

			fmt.Print(services.Summarize(diags))

			for _, d := range diags {
				if d.Status == services.DiagnosticError {
					return fmt.Errorf("doctor found errors")
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&pluginID, "plugin", "", "also verify this tool's plugin compiles")
	return cmd
}
