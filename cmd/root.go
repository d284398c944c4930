// Package cmd wires the command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - a personal chat backend",
	Long: `Parley is a single-user chat backend. It stores conversations
locally, relays streaming generations from an OpenAI-compatible upstream,
and serves the browser client.

Running parley with no arguments starts the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
