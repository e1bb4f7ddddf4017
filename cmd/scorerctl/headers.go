package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newHeadersCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "headers",
		Short: "Print the feature columns of a scorer file in order",
		Long: `Print the feature column names in the order they are appended to the
base features: document scorers, then query scorers, then query/document
scorers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, cleanup, err := opts.loadRegistry()
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(map[string]any{
					"headers":         registry.Headers(),
					"required_fields": registry.RequiredFields(),
				})
			}
			fmt.Fprintln(out, strings.Join(registry.Headers(), ","))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output headers and required fields as JSON")
	return cmd
}
