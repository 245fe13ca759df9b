package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/log"
	"github.com/DuoChen-317/csds425-projs/internal/trace"
)

var importRewriteChecksum bool

var traceImportCmd = &cobra.Command{
	Use:   "trace-import <input.pcap> <output-trace>",
	Short: "Convert a pcap capture into a binary trace",
	Long: `Convert the IPv4 packets of a pcap capture into trace records.

Frames without an IPv4 layer are skipped. The capture timestamp becomes the
record timestamp and the first 20 bytes of the IPv4 header are kept as is.

With --rewrite-checksum (the default) the checksum field is rewritten so
the simulator's checksum gate matches the real header checksum: valid
headers get the pass marker, invalid ones never carry it.

Example:
  fibsim trace-import capture.pcap trace.bin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, outputFile := args[0], args[1]

		in, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("opening input file: %w", err)
		}
		defer in.Close()

		out, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer out.Close()

		tw := trace.NewWriter(out)
		res, err := trace.ImportPCAP(bufio.NewReader(in), tw, trace.ImportOptions{
			RewriteChecksum: importRewriteChecksum,
		})
		if err != nil {
			return fmt.Errorf("importing %s: %w", inputFile, err)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", outputFile, err)
		}

		if res.Skipped > 0 {
			log.Get().WithField("skipped", res.Skipped).Info("Skipped frames without an IPv4 header")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d packets from %s to %s\n", res.Packets, inputFile, outputFile)
		return nil
	},
}

func init() {
	traceImportCmd.Flags().BoolVar(&importRewriteChecksum, "rewrite-checksum", true, "Mark packets by their real IPv4 header checksum")
	rootCmd.AddCommand(traceImportCmd)
}
