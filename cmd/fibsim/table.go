package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/fib"
	"github.com/DuoChen-317/csds425-projs/internal/netutil"
)

var tableCmd = &cobra.Command{
	Use:     "table",
	Aliases: []string{"r"},
	Short:   "Print or build forwarding table files",
	Long: `Print every rule of a binary forwarding table, one line per rule:

  <network> <prefix-length> <interface>

Subcommands build table files from text or from the kernel routing table.

Example:
  fibsim table -f table.bin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTable(); err != nil {
			return err
		}

		rules, err := fib.LoadRules(tablePath)
		if err != nil {
			return err
		}

		out := bufio.NewWriter(cmd.OutOrStdout())
		for _, r := range rules {
			out.WriteString(r.String())
			out.WriteByte('\n')
		}
		return out.Flush()
	},
}

var tableCompileCmd = &cobra.Command{
	Use:   "compile <text-table> <output>",
	Short: "Compile a text table into the binary format",
	Long: `Compile a text forwarding table into the binary table format.

File format: one rule per line, "prefix/len interface".
Lines starting with # are comments. The interface "drop" is the
policy-drop interface 0.

Example file content:
  # lab routes
  0.0.0.0/0      5
  10.0.0.0/8     1
  10.66.0.0/16   drop

Usage:
  fibsim table compile routes.txt table.bin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, outputFile := args[0], args[1]

		file, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("opening input file: %w", err)
		}
		defer file.Close()

		rules, err := fib.ParseRuleText(file)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", inputFile, err)
		}

		if !compileAllowConflicts {
			if err := fib.CheckConflicts(rules); err != nil {
				return fmt.Errorf("%s: %w", inputFile, err)
			}
		}

		if err := fib.SaveRules(outputFile, rules); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d rules from %s to %s\n", len(rules), inputFile, outputFile)
		return nil
	},
}

var compileAllowConflicts bool

var tableKernelCmd = &cobra.Command{
	Use:   "kernel <output>",
	Short: "Snapshot the kernel IPv4 main routing table",
	Long: `Write the kernel's IPv4 main routing table as a binary forwarding table.

Unicast routes map to their output interface index; blackhole, unreachable
and prohibit routes map to the policy-drop interface 0. When a prefix is
installed at several metrics, the preferred one is kept.

Example:
  fibsim table kernel table.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		routes, err := netutil.KernelRoutes()
		if err != nil {
			return err
		}

		rules, err := fib.RulesFromKernel(routes)
		if err != nil {
			return err
		}

		if err := fib.SaveRules(args[0], rules); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d kernel routes to %s\n", len(rules), args[0])
		return nil
	},
}

func init() {
	tableCompileCmd.Flags().BoolVar(&compileAllowConflicts, "allow-conflicts", false, "Write the table even if two rules claim the same prefix")
	tableCmd.AddCommand(tableCompileCmd)
	tableCmd.AddCommand(tableKernelCmd)
	rootCmd.AddCommand(tableCmd)
}
