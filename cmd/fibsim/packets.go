package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/log"
	"github.com/DuoChen-317/csds425-projs/internal/trace"
)

var packetsCmd = &cobra.Command{
	Use:     "packets",
	Aliases: []string{"p"},
	Short:   "Print the packets of a trace file",
	Long: `Print every record of a trace file, one line per packet:

  <timestamp> <source> <destination> <P|F checksum> <ttl>

Example:
  fibsim packets -t trace.bin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTrace(); err != nil {
			return err
		}

		file, err := os.Open(tracePath)
		if err != nil {
			return fmt.Errorf("opening trace %s: %w", tracePath, err)
		}
		defer file.Close()

		out := bufio.NewWriter(cmd.OutOrStdout())
		sc := trace.NewScanner(file)
		for sc.Scan() {
			out.WriteString(trace.FormatPacket(sc.Packet()))
			out.WriteByte('\n')
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("writing packets: %w", err)
		}

		if err := sc.Err(); err != nil {
			if !errors.Is(err, trace.ErrTruncated) {
				return fmt.Errorf("reading trace %s: %w", tracePath, err)
			}
			log.Get().WithField("path", tracePath).WithError(err).Warn("Ignoring truncated trace record")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(packetsCmd)
}
