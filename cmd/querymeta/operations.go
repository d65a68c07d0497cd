package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newOperationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the registered operations and their query comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprintln(w, "OPERATION\tCOMMENT")
			for _, operation := range a.registry.Operations() {
				fmt.Fprintf(w, "%s\t%s\n", operation, strconv.Quote(a.registry.MetaFor(operation).Comment()))
			}

			return w.Flush()
		},
	}
}
