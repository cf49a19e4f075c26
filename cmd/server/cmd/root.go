package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/registration/internal/config"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "Corrida para o Everest registration server",
		Long: `Registration server for the Corrida para o Everest race.

The server provides:
- Registration intake (notification email, database record, legacy roster line)
- The email and roster relay endpoints used by the static site
- The public roster and the results ranking
- A password-gated admin console for payments, finish times and global flags`,
		SilenceUsage: true,
		// Serve by default when no subcommand is given.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), defaultServeOptions())
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (optional, environment variables still win)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newRosterCommand())
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	return root
}

// Execute runs the command line. SIGINT and SIGTERM cancel the command
// context, which is how serve shuts down.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}
