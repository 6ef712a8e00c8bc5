package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the xoarena CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xoarena",
		Short: "xoarena - authentication core for the XO Arena game backend",
		Long: `xoarena is the authentication core of the XO Arena game backend:
captcha-gated signup, credential verification, and a signed two-tier
access/refresh token model with staggered refresh activation.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
