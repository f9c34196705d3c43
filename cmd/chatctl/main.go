// Package main provides the chatctl CLI for talking to a running chat
// engine API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	outputJSON bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "CLI client for the franchise chat engine",
	Long: `chatctl talks to a running chat engine API server.

Use this tool to:
- Ask the assistant a question from the terminal
- Inspect provider availability and cache statistics

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if serverURL == "" {
			serverURL = os.Getenv("CHAT_ENGINE_URL")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8090"
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "API server base URL (default: $CHAT_ENGINE_URL or http://localhost:8090)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newStatusCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
