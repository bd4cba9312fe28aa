// Package cli provides the command-line interface for memchat.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/memchat/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "memchat",
	Short: "Chat assistant that remembers who you are",
	Long: `Memchat is a chat assistant with persistent memory. It recognizes the
user who chatted last, resumes their latest session and greets them by name.

It also ships an email judge that labels emails as IMPORTANT or JUNK.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found, using environment variables")
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		// The server logs to stdout like any service; interactive commands
		// keep stdout for the conversation.
		var w io.Writer = os.Stderr
		if cmd.Name() == serveCmd.Name() {
			w = os.Stdout
		}
		logger, closeLog = config.SetupLogger(w, cfg.LogFile, config.ParseLevel(cfg.LogLevel))
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment variables take precedence)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(judgeCmd)
}
