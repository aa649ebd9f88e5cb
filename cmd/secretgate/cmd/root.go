// Package cmd provides the secretgate CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/secretgate/secretgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "secretgate",
	Short: "secretgate - a secret-mediation gateway for MCP tool calls",
	Long: `secretgate mediates access to secrets for MCP-based agents: it holds
the only credential that can reach a third-party API, and exposes a
narrow, policy-gated set of tools (discover_secrets, describe_policy,
use_secret, query_audit) so an agent can act on a caller's behalf
without the secret value ever entering its context.

Quick start:
  1. Create a config file: vault.config.json
  2. Run: secretgate serve

Configuration:
  Config is loaded from vault.config.json in the current directory by
  default; pass --config to point elsewhere.

  Environment variables can override the settings block with the
  SECRETGATE_ prefix. Example: SECRETGATE_MAXFILESIZEMB=50

Commands:
  serve     Run the gateway, serving tool calls over stdio
  doctor    Validate configuration and report secret availability
  version   Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.DefaultConfigFile+")")
}
