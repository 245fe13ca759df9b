package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/fib"
	"github.com/DuoChen-317/csds425-projs/internal/netutil"
)

var lookupCmd = &cobra.Command{
	Use:     "lookup <address>...",
	Aliases: []string{"l"},
	Short:   "Route single destination addresses",
	Long: `Look up destination addresses in a forwarding table and print the
routing verdict with the matched prefix length. Checksum and TTL gates
are not applied.

Example:
  fibsim lookup -f table.bin 10.1.2.3 192.168.0.1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTable(); err != nil {
			return err
		}

		sim, err := fib.NewSimulator(tablePath, fib.Options{Policy: conflictPolicy()})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, arg := range args {
			dst, err := netutil.ParseIPv4(arg)
			if err != nil {
				return err
			}
			action, res := sim.Engine().Route(dst)
			match := "no match"
			if res.Found {
				match = fmt.Sprintf("/%d", res.PrefixLen)
			}
			fmt.Fprintf(out, "%s %s (%s)\n", netutil.FormatIPv4(dst), action, match)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
