package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the Gatehouse CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatehouse",
		Short: "Gatehouse - session-based authentication service",
		Long: `Gatehouse is a session-based authentication service with
salted password hashing, opaque session tokens, and a JSON HTTP API.`,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}
