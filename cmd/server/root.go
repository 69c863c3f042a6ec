package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"veritas.app/backend/internal/config"
	"veritas.app/backend/internal/logging"
)

var logger *logrus.Logger

var rootCmd = &cobra.Command{
	Use:   "veritas",
	Short: "Fact-checking backend for the Veritas assistant",
	Long: `veritas analyzes statements with a language model, flags likely
inaccuracies and looks up corroborating sources for flagged claims.

Running 'veritas' without a subcommand starts the HTTP server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig()
	},
	RunE: runServe,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if logger != nil {
			logger.WithError(err).Error("command failed")
		} else {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		}
	}
	return err
}

func initConfig() error {
	envFileFound, err := config.LoadConfig()
	logger = logging.New(config.AppConfig.LogLevel, config.AppConfig.LogFormat, nil)
	if !envFileFound {
		logger.Debug("no .env file found, using environment variables only")
	}
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
