package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const configSuffix = "tabelo"

var (
	debugMode      bool
	simulationMode bool
	configDir      string
)

var rootCmd = &cobra.Command{
	Use:   "tabelosrv",
	Short: "An e-paper board for bus arrivals and weather",
	Long: `Tabelo drives a small e-paper panel showing the next bus arrivals at
tracked stops, route alerts and the local weather. What is shown depends on
the time of day: each window of the day has its own schedule of screens.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			logrus.SetLevel(logrus.DebugLevel)
			logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
			logrus.Printf("Debug mode activated")
		}
	},
}

func init() {
	// User config dir
	defaultConfigDir := "./." + configSuffix
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		defaultConfigDir = filepath.Join(userConfigDir, configSuffix)
	}

	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().BoolVarP(&simulationMode, "simulation", "s", false, "Enable simulation mode")
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", defaultConfigDir, "Location of tabelo config folder")
}

func main() {
	// Logger
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
