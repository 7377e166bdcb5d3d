package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zombar/communityanalyzer/internal/patterns"
)

func newTaxonomyCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the built-in forbidden pattern taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tax := patterns.DefaultTaxonomy()
			if asJSON {
				return root.writeJSON(cmd.OutOrStdout(), tax)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "CATEGORY\tSEVERITY\tPATTERNS\n")
			for _, c := range tax.Categories {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Name, c.Severity, len(c.Patterns))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full taxonomy as JSON")
	return cmd
}
