package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/duograph/gqlduplex"
)

type queryFlags struct {
	variables string
	operation string
	pretty    bool
}

var queryFlagVals queryFlags

var queryCmd = &cobra.Command{
	Use:   "query <query|@file>",
	Short: "Execute a query or mutation over http",
	Example: `  # Inline query
  gqlduplex query --endpoint http://localhost:8080/graphql "{ users { id name } }"

  # Query from a file, with variables
  gqlduplex query -c gql.yaml @get-user.graphql -v '{"id":"123"}'

  # Pick one operation out of a multi-operation document
  gqlduplex query -c gql.yaml @ops.graphql -o GetUser`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	f := &queryFlagVals

	queryCmd.Flags().StringVarP(&f.variables, "variables", "v", "", "Variables as a JSON object")
	queryCmd.Flags().StringVarP(&f.operation, "operation", "o", "", "Operation name for multi-operation documents")
	queryCmd.Flags().BoolVar(&f.pretty, "pretty", true, "Indent the JSON output")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	req, err := buildRequest(args[0], queryFlagVals.variables, queryFlagVals.operation)
	if err != nil {
		return err
	}

	var data json.RawMessage
	if err := client.Do(cmd.Context(), &data, req); err != nil {
		return err
	}
	return printJSON(os.Stdout, data, queryFlagVals.pretty)
}

// buildRequest assembles a Request from the query argument, loading it
// from disk when prefixed with @.
func buildRequest(query, variables, operation string) (gqlduplex.Request, error) {
	req := gqlduplex.Request{Query: query, OperationName: operation}
	if strings.HasPrefix(query, "@") {
		raw, err := os.ReadFile(query[1:])
		if err != nil {
			return req, errors.Wrap(err, "read query file")
		}
		req.Query = string(raw)
	}
	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &req.Variables); err != nil {
			return req, errors.Wrap(err, "parse variables")
		}
	}
	return req, nil
}

func printJSON(w io.Writer, raw []byte, pretty bool) error {
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			_, err = fmt.Fprintln(w, buf.String())
			return err
		}
	}
	_, err := fmt.Fprintln(w, string(raw))
	return err
}
