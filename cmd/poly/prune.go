package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPruneCmd())
}

func newPruneCmd() *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune <tool>",
		Short: "Remove stale installed versions of a tool",
		Long:  `Removes every installed version of <tool> last used before the cutoff, keeping the rest.`,
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, err := parseToolContext(args[0])
			if err != nil {
				return err
			}
			cutoff := time.Now().Add(-olderThan).UnixMilli()
			removed, err := cc.Container.Pruner().Prune(cc.Context, tc.Id, cutoff, dryRun)
			if err != nil {
				return fmt.Errorf("pruning %s: %w", tc.Id, err)
			}
			if len(removed) == 0 {
				fmt.Printf("nothing to prune for %s\n", tc.Id)
				return nil
			}
			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			for _, v := range removed {
				fmt.Printf("%s %s %s\n", verb, tc.Id, v)
			}
			return nil
		}),
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "prune versions last used before this long ago")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be pruned without removing it")
	return cmd
}
