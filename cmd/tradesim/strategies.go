package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tradesim/internal/strategy/builtins"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List strategies and their parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, def := range builtins.Registry().List() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", def.Kind, def.Name, def.Description)
			for _, p := range def.Params {
				kind := "float"
				if p.Integer {
					kind = "int"
				}
				fmt.Fprintf(tw, "\t  %s\t%s, default %g, range [%g, %g]\n", p.Name, kind, p.Default, p.Min, p.Max)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
