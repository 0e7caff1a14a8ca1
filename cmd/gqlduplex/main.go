// gqlduplex CLI - run GraphQL queries and subscriptions from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags shared by all subcommands.
	flagConfig   string
	flagEndpoint string
	flagBearer   string
	flagHeaders  []string
	flagVerbose  bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "gqlduplex",
	Short: "GraphQL client for queries, mutations and subscriptions",
	Long: `gqlduplex talks to a GraphQL server over both of its transports:
queries and mutations go over plain http, subscriptions go over a
websocket speaking the graphql-ws protocol.

The endpoint and credentials can be passed as flags or kept in a yaml
config file passed with --config. Flags win over the config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a yaml config file")
	rootCmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "GraphQL http endpoint URL")
	rootCmd.PersistentFlags().StringVar(&flagBearer, "bearer", "", "Bearer token for the Authorization header")
	rootCmd.PersistentFlags().StringArrayVarP(&flagHeaders, "header", "H", nil, "Additional header as key:value, repeatable")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Log protocol traffic to stderr")
}
