package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/rotor/cmd/rotor/commands"
	"github.com/systmms/rotor/internal/config"
	"github.com/systmms/rotor/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "rotor",
		Short: "Secret rotation scheduling and execution engine",
		Long: `rotor decides when managed secrets must rotate, executes each due
rotation exactly once, retries failures with bounded backoff, and
recovers its schedule after restarts.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.ConfigPath = configFile
			opts.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewServeCommand(opts),
		commands.NewScheduleCommand(opts),
		commands.NewCancelCommand(opts),
		commands.NewRotateCommand(opts),
		commands.NewStatusCommand(opts),
		commands.NewStrategiesCommand(opts),
	)

	return rootCmd.Execute()
}
