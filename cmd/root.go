// Package cmd wires the relaydesk CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relaydesk",
	Short: "Multi-tenant customer support assistant service",
	Long: `relaydesk serves embeddable AI support widgets for multiple tenants.

Each tenant brings its own instructions, model provider, and knowledge
base; the service grounds every answer in the tenant's documents via
vector retrieval.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
