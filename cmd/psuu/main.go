// Command psuu is the outer CLI shim around the optimization engine: it
// loads an ExperimentFile, wires the core packages together, and runs or
// inspects an Experiment. It owns no optimization logic itself.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rororowyourboat/psuu/internal/xlog"
)

var logLevel string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "psuu",
		Short: "psuu drives black-box simulation models through an optimization engine",
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.AddCommand(newRunCmd(), newBestCmd())
	return cmd
}

func parseLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func newLogger() zerolog.Logger {
	return xlog.Init(parseLevel())
}
