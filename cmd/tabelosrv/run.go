package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jypelle/tabelo/internal/srv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the server",
	Long: `Run the server until it receives an interrupt signal. On exit the
panel is cleared and put to sleep.`,
	Args: cobra.NoArgs,
	Run:  runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runServer(cmd *cobra.Command, args []string) {
	serverApp := srv.NewServerApp(configDir, debugMode, simulationMode)

	// Listen stop signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGHUP)
	defer stop()

	serverApp.Start(ctx)

	<-ctx.Done()
	logrus.Infof("Received stop signal")
	serverApp.Stop()
}
