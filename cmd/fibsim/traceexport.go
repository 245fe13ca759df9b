package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/log"
	"github.com/DuoChen-317/csds425-projs/internal/trace"
)

var (
	exportSrcMAC string
	exportDstMAC string
)

var traceExportCmd = &cobra.Command{
	Use:   "trace-export <input-trace> <output.pcap>",
	Short: "Convert a binary trace into a pcap file",
	Long: `Write every record of a binary trace as an Ethernet/IPv4/UDP frame.

The IPv4 header keeps the record's addresses, TTL and checksum field, so
capture tools show the same packets the simulator sees.

Example:
  fibsim trace-export trace.bin trace.pcap`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, outputFile := args[0], args[1]

		in, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("opening trace %s: %w", inputFile, err)
		}
		defer in.Close()

		pw, err := createPCAP(outputFile, exportSrcMAC, exportDstMAC)
		if err != nil {
			return err
		}
		defer pw.Close()

		sc := trace.NewScanner(in)
		for sc.Scan() {
			if err := pw.Write(sc.Packet()); err != nil {
				return err
			}
		}
		if err := sc.Err(); err != nil {
			if !errors.Is(err, trace.ErrTruncated) {
				return fmt.Errorf("reading trace %s: %w", inputFile, err)
			}
			log.Get().WithField("path", inputFile).WithError(err).Warn("Ignoring truncated trace record")
		}
		if err := pw.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d packets from %s to %s\n", pw.Count(), inputFile, outputFile)
		return nil
	},
}

// pcapSink is a PCAPWriter backed by a buffered file.
type pcapSink struct {
	*trace.PCAPWriter
	file   *os.File
	buf    *bufio.Writer
	closed bool
}

func createPCAP(filename, srcMAC, dstMAC string) (*pcapSink, error) {
	src, err := net.ParseMAC(srcMAC)
	if err != nil {
		return nil, fmt.Errorf("invalid source MAC: %w", err)
	}
	dst, err := net.ParseMAC(dstMAC)
	if err != nil {
		return nil, fmt.Errorf("invalid destination MAC: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("creating pcap file: %w", err)
	}
	buf := bufio.NewWriter(file)
	pw, err := trace.NewPCAPWriter(buf, src, dst)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &pcapSink{PCAPWriter: pw, file: file, buf: buf}, nil
}

// Close flushes and closes the file. Calling it again is a no-op.
func (s *pcapSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flushing pcap: %w", err)
	}
	return s.file.Close()
}

func init() {
	traceExportCmd.Flags().StringVar(&exportSrcMAC, "src-mac", "00:00:00:00:00:01", "Source MAC address")
	traceExportCmd.Flags().StringVar(&exportDstMAC, "dst-mac", "00:00:00:00:00:02", "Destination MAC address")
	rootCmd.AddCommand(traceExportCmd)
}
