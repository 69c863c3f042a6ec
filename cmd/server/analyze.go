package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"veritas.app/backend/internal/config"
	"veritas.app/backend/internal/core"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <statement>",
	Short: "Fact-check one statement and print the result as JSON",
	Long: `Run the fact-check pipeline once, outside the HTTP server.

Examples:
  # Analyze a statement; the result is stored as a standalone record
  veritas analyze "The Earth is flat."

  # Append the exchange to an existing chat
  veritas analyze --user u1 --chat 1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed "The Earth is flat."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeUserID string
	analyzeChatID string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeUserID, "user", "", "user ID that owns the chat")
	analyzeCmd.Flags().StringVar(&analyzeChatID, "chat", "", "chat to append the exchange to")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), config.AppConfig, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background(), logger)

	res, err := a.analysis.Analyze(cmd.Context(), core.AnalyzeRequest{
		Statement: strings.Join(args, " "),
		UserID:    analyzeUserID,
		ChatID:    analyzeChatID,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
