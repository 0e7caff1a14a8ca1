package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duograph/gqlduplex"
)

type subscribeFlags struct {
	variables string
	operation string
	count     int
	pretty    bool
}

var subscribeFlagVals subscribeFlags

var subscribeCmd = &cobra.Command{
	Use:     "subscribe <query|@file>",
	Aliases: []string{"sub"},
	Short:   "Run a subscription over websocket and stream results to stdout",
	Long: `Run a GraphQL subscription and print every result as a JSON line.

The websocket connection is kept alive until the server completes the
subscription or the process is interrupted. If the connection drops the
client reconnects and resubscribes on its own; use noReconnect or
noResubscribe in the config file to turn that off.`,
	Example: `  # Stream until Ctrl-C
  gqlduplex subscribe -c gql.yaml "subscription { messageAdded { id body } }"

  # Take the first result and exit
  gqlduplex sub -c gql.yaml -n 1 "subscription { heartbeat }"`,
	Args: cobra.ExactArgs(1),
	RunE: runSubscribe,
}

func init() {
	f := &subscribeFlagVals

	subscribeCmd.Flags().StringVarP(&f.variables, "variables", "v", "", "Variables as a JSON object")
	subscribeCmd.Flags().StringVarP(&f.operation, "operation", "o", "", "Operation name for multi-operation documents")
	subscribeCmd.Flags().IntVarP(&f.count, "count", "n", 0, "Exit after this many results (0 = until completed or interrupted)")
	subscribeCmd.Flags().BoolVar(&f.pretty, "pretty", false, "Indent each result instead of printing one line per result")

	rootCmd.AddCommand(subscribeCmd)
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	req, err := buildRequest(args[0], subscribeFlagVals.variables, subscribeFlagVals.operation)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var once sync.Once
	done := make(chan struct{})
	finish := func() { once.Do(func() { close(done) }) }

	seen := 0
	id, err := client.Subscribe(req, func(data json.RawMessage, errs gqlduplex.GraphQLErrors, completed bool) error {
		switch {
		case completed:
			finish()
		case errs != nil:
			fmt.Fprintln(os.Stderr, errs.Error())
		default:
			if err := printJSON(os.Stdout, data, subscribeFlagVals.pretty); err != nil {
				return err
			}
			seen++
			if subscribeFlagVals.count > 0 && seen >= subscribeFlagVals.count {
				finish()
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.CloseWebsocket() }()

	select {
	case <-done:
	case <-ctx.Done():
		_ = client.Unsubscribe(id)
	}
	return nil
}
