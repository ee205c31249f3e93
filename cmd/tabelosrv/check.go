package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [PARAM_FILE]",
	Short: "Validate a param file and print the day timeline",
	Long: `Validate a param file and print which schedule runs at each time of the
day. Without argument, the param file of the config folder is checked.

Examples:
  # Check the current configuration
  tabelosrv check

  # Check a draft before installing it
  tabelosrv check ./param.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	paramFilename := filepath.Join(configDir, "param.yaml")
	if len(args) > 0 {
		paramFilename = args[0]
	}

	rawParam, err := os.ReadFile(paramFilename)
	if err != nil {
		return fmt.Errorf("unable to read param file: %w", err)
	}
	serverParam, err := config.LoadServerParam(rawParam)
	if err != nil {
		return fmt.Errorf("invalid param file %s:\n%w", paramFilename, err)
	}
	dispatcher, err := serverParam.Dispatcher()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s is valid (time zone %s)\n\n", paramFilename, serverParam.Location())
	for _, window := range dispatcher.Timeline() {
		var blocks []string
		for _, block := range serverParam.Schedules[window.Schedule] {
			blocks = append(blocks, fmt.Sprintf("%s %s", block.Type, block.Dwell))
		}
		fmt.Fprintf(out, "%s-%s  %-10s %s\n", window.Start, window.End, window.Schedule, strings.Join(blocks, ", "))
	}
	fmt.Fprintf(out, "\n%d tracked stops on routes %s\n", len(serverParam.TrackedStops), strings.Join(serverParam.Routes(), ", "))
	return nil
}
