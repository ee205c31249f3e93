package main

import (
	"fmt"

	"github.com/jypelle/tabelo/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version %s\n", version.AppVersion.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
