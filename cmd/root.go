package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// appConfig is loaded once per invocation before any subcommand runs.
	appConfig *config.Config
	runID     string
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Onboard provisions accounts for new hires from helpdesk tickets",
	Long: `Onboard turns new-hire intake tickets into directory accounts.

It runs in two phases:

1. export    reads pending tickets from the helpdesk and writes the CSV handoff
2. provision creates the accounts listed in the handoff, waits for them to reach
             the secondary directory and emails each hire their first password

Configuration is read from onboard.yaml (current directory or ~/.onboard),
ONBOARD_-prefixed environment variables and a .env file if present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Best effort: real environment and the config file still apply
		// when no .env exists.
		_ = godotenv.Load()

		cfgFile, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-dir") {
			cfg.Log.Dir, _ = cmd.Flags().GetString("log-dir")
		}

		id, closer, err := logging.Setup(logging.Options{
			Level: logging.LogLevel(cfg.Log.Level),
			Dir:   cfg.Log.Dir,
		})
		if err != nil {
			return err
		}

		appConfig = cfg
		runID = id
		logCloser = closer

		logging.Debug("configuration loaded",
			"command", cmd.CommandPath(),
			"log_dir", cfg.Log.Dir)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it. SIGINT and
// SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx)
}

// execute runs the root command, logs a fatal error while the log file is
// still open and then closes the file on every path.
func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logging.Error("command execution failed", "error", err)
	}
	closeLog()
	return err
}

// closeLog closes the log file sink and points the logger back at stdout.
func closeLog() {
	if logCloser == nil {
		return
	}
	if err := logCloser.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to close log file:", err)
	}
	logCloser = nil
	logging.SetupLogger(os.Stdout, logging.LevelInfo)
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default onboard.yaml in . or ~/.onboard)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-dir", "", "directory for the daily log file; empty disables it (default ~/.onboard/logs)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(configCmd)
}
