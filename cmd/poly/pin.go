package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/internal/domain/entities"
)

func init() {
	rootCmd.AddCommand(newPinCmd())
	rootCmd.AddCommand(newUnpinCmd())
	rootCmd.AddCommand(newAliasCmd())
}

func parseLocation(global, user bool) entities.Location {
	switch {
	case global:
		return entities.LocationGlobal
	case user:
		return entities.LocationUser
	default:
		return entities.LocationLocal
	}
}

func newPinCmd() *cobra.Command {
	var global, user bool

	cmd := &cobra.Command{
		Use:   "pin <tool>@<spec>",
		Short: "Pin a tool to a version spec",
		Example: `  poly pin node@20
  poly pin --global go@1.22`,
		Args: cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, spec, err := parseInstallArg(args[0])
			if err != nil {
				return err
			}
			return cc.Container.PinService().Pin(cc.Context, dto.PinRequest{
				Id:       tc.Id,
				Backend:  tc.Backend,
				Spec:     spec.Format(),
				Location: parseLocation(global, user),
				Cwd:      cc.Cwd,
			})
		}),
	}
	cmd.Flags().BoolVar(&global, "global", false, "pin in the store's global .prototools")
	cmd.Flags().BoolVar(&user, "user", false, "pin in the user's home .prototools")
	return cmd
}

func newUnpinCmd() *cobra.Command {
	var global, user bool

	cmd := &cobra.Command{
		Use:   "unpin <tool>",
		Short: "Remove a tool's version pin",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, err := parseToolContext(args[0])
			if err != nil {
				return err
			}
			return cc.Container.PinService().Pin(cc.Context, dto.PinRequest{
				Id:       tc.Id,
				Backend:  tc.Backend,
				Spec:     "",
				Location: parseLocation(global, user),
				Cwd:      cc.Cwd,
			})
		}),
	}
	cmd.Flags().BoolVar(&global, "global", false, "unpin in the store's global .prototools")
	cmd.Flags().BoolVar(&user, "user", false, "unpin in the user's home .prototools")
	return cmd
}

func newAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage tool version aliases",
	}
	cmd.AddCommand(newAliasSetCmd())
	cmd.AddCommand(newAliasListCmd())
	return cmd
}

func newAliasSetCmd() *cobra.Command {
	var global, user bool

	cmd := &cobra.Command{
		Use:   "set <tool> <alias> [spec]",
		Short: "Set or remove an alias for a tool",
		Long:  `With no spec argument, removes the alias instead of setting it.`,
		Args:  cobra.RangeArgs(2, 3),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, err := parseToolContext(args[0])
			if err != nil {
				return err
			}
			spec := ""
			if len(args) == 3 {
				spec = args[2]
			}
			return cc.Container.PinService().SetAlias(cc.Context, dto.AliasRequest{
				Id:       tc.Id,
				Alias:    args[1],
				Spec:     spec,
				Location: parseLocation(global, user),
				Cwd:      cc.Cwd,
			})
		}),
	}
	cmd.Flags().BoolVar(&global, "global", false, "set in the store's global .prototools")
	cmd.Flags().BoolVar(&user, "user", false, "set in the user's home .prototools")
	return cmd
}

func newAliasListCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "list <tool>",
		Short: "List aliases configured for a tool",
		Args: cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			tc, err := parseToolContext(args[0])
			if err != nil {
				return err
			}
			aliases, err := cc.Container.PinService().ListAliases(cc.Context, cc.Cwd, tc.Id)
			if err != nil {
				return err
			}
			for name, spec := range aliases {
				fmt.Printf("%s -> %s\n", name, spec.Format())
			}
			return nil
		}),
	}
}
