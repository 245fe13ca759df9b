package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/fib"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show forwarding table information",
	Long: `Display a summary of a forwarding table: rule count, default route,
routes per prefix length and any rules that claim the same prefix.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTable(); err != nil {
			return err
		}

		rules, err := fib.LoadRules(tablePath)
		if err != nil {
			return err
		}
		if err := fib.ValidateRules(rules); err != nil {
			return fmt.Errorf("table %s: %w", tablePath, err)
		}

		conflicts := fib.FindConflicts(rules)
		ix, err := fib.NewIndex(rules, fib.ConflictKeepFirst)
		if err != nil {
			return fmt.Errorf("indexing table %s: %w", tablePath, err)
		}

		out := cmd.OutOrStdout()
		defaultRoute := "none"
		if iface, ok := ix.Default(); ok {
			defaultRoute = fmt.Sprintf("interface %d", iface)
		}

		fmt.Fprintln(out, "FIB Information")
		fmt.Fprintln(out, "===============")
		fmt.Fprintf(out, "Table file:      %s\n", tablePath)
		fmt.Fprintf(out, "Rules in file:   %d\n", len(rules))
		fmt.Fprintf(out, "Indexed routes:  %d\n", ix.Len())
		fmt.Fprintf(out, "Default route:   %s\n", defaultRoute)
		fmt.Fprintf(out, "Conflicts:       %d\n", len(conflicts))

		if lengths := ix.Lengths(); len(lengths) > 0 {
			fmt.Fprintln(out)
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Prefix Length", "Routes"})
			table.SetAlignment(tablewriter.ALIGN_RIGHT)
			for _, lc := range lengths {
				table.Append([]string{"/" + strconv.Itoa(lc.PrefixLen), strconv.Itoa(lc.Routes)})
			}
			table.Render()
		}

		if len(conflicts) > 0 {
			fmt.Fprintln(out)
			for _, c := range conflicts {
				fmt.Fprintf(out, "  %s\n", c.Error())
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
