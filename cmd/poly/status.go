package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/polytool-dev/polytool/internal/application/dto"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newEnvCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <tool>",
		Short: "Show the version a tool would resolve to here, and where that came from",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, err := parseToolContext(args[0])
			if err != nil {
				return err
			}
			wasmBytes, err := cc.Container.LoadPluginBytes(cc.Context, cc.Cwd, tc.Id)
			if err != nil {
				return err
			}
			result, err := cc.Container.StatusService().Resolve(cc.Context, dto.ResolveRequest{
				RequestID: uuid.NewString(),
				Context:   tc,
				Cwd:       cc.Cwd,
			}, wasmBytes)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", tc, err)
			}
			fmt.Printf("%s resolves to %s (from %s: %s)\n",
				tc, result.Resolved.Format(), result.From.Source, result.From.Origin)
			return nil
		}),
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <tool>",
		Short: "List installed versions of a tool, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, err := parseToolContext(args[0])
			if err != nil {
				return err
			}
			versions, err := cc.Container.StatusService().ListInstalled(cc.Context, tc.Id)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Printf("no versions of %s installed\n", tc.Id)
				return nil
			}
			for _, v := range versions {
				fmt.Println(v)
			}
			return nil
		}),
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print every *_VERSION environment variable poly would honor",
		Args:  cobra.NoArgs,
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			snapshot := cc.Container.StatusService().EnvSnapshot()
			if len(snapshot) == 0 {
				fmt.Println("no *_VERSION variables set")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			for key, value := range snapshot {
				fmt.Fprintf(w, "%s\t%s\n", key, value)
			}
			return w.Flush()
		}),
	}
}
