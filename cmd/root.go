// Package cmd wires the CLI surface: the HTTP server, a one-shot ask
// mode, and knowledge indexing.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "beatsync",
	Short: "BeatSync, the music-savvy conversational assistant",
	Long: `BeatSync answers questions grounded in its music knowledge base,
recommends tracks for your mood, and streams every answer as it is
generated.

Run "beatsync serve" to start the HTTP API, or "beatsync ask" for a
one-shot answer in the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
