package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polytool-dev/polytool/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of poly",
	Run: func(_ *cobra.Command, _ []string) {
		info := version.Get()
		fmt.Printf("poly version %s\n", info.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
