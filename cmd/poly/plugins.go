package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Manage tool plugins",
	Long:  `Inspect the plugins configured in the ".prototools" stack and any configured registries.`,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
	pluginsCmd.AddCommand(newPluginsListCmd())
	pluginsCmd.AddCommand(newPluginsInfoCmd())
	pluginsCmd.AddCommand(newPluginsSearchCmd())
}

func newPluginsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List every plugin visible from the current directory",
		Args:    cobra.NoArgs,
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			entries, err := cc.Container.PluginCatalogService().List(cc.Context, cc.Cwd)
			if err != nil {
				return fmt.Errorf("listing plugins: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no plugins configured")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tLOCATOR")
			for _, e := range entries {
				source := "registry"
				if e.FromConfig {
					source = "config"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Id, source, e.Locator.String())
			}
			return w.Flush()
		}),
	}
}

func newPluginsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Show a single plugin's configured locator",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, err := parseToolContext(args[0])
			if err != nil {
				return err
			}
			entry, found, err := cc.Container.PluginCatalogService().Info(cc.Context, cc.Cwd, tc.Id)
			if err != nil {
				return fmt.Errorf("looking up plugin %s: %w", tc.Id, err)
			}
			if !found {
				return fmt.Errorf("no plugin configured for %s", tc.Id)
			}
			fmt.Printf("id:          %s\n", entry.Id)
			fmt.Printf("locator:     %s\n", entry.Locator.String())
			if entry.Description != "" {
				fmt.Printf("description: %s\n", entry.Description)
			}
			return nil
		}),
	}
}

func newPluginsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search configured registries and local plugins by id or description",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			entries, err := cc.Container.PluginCatalogService().Search(cc.Context, cc.Cwd, args[0])
			if err != nil {
				return fmt.Errorf("searching plugins: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no matching plugins")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s\t%s\n", e.Id, e.Locator.String())
			}
			return nil
		}),
	}
}
