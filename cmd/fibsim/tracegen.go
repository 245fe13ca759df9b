package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/fib"
	"github.com/DuoChen-317/csds425-projs/internal/log"
	"github.com/DuoChen-317/csds425-projs/internal/netutil"
	"github.com/DuoChen-317/csds425-projs/internal/trace"
)

var (
	genFlowSize    int
	genPacketCount int
	genDist        string
	genZipfS       float64
	genSrcIP       string
	genTTL         uint8
	genBadChecksum float64
	genExpired     float64
	genRandomDst   float64
	genSeed        int64
	genInterval    time.Duration
	genStart       string
	genPCAP        string
	genSrcMAC      string
	genDstMAC      string
)

var traceGenCmd = &cobra.Command{
	Use:   "trace-gen <table-file> <output-trace>",
	Short: "Generate a trace aimed at the prefixes of a forwarding table",
	Long: `Generate a binary packet trace with destinations drawn from a forwarding table.

The tool reads the table, randomly selects N prefixes (flow-size) and
generates packets to the first host of each selected prefix according to
the chosen distribution. For example, 10.0.0.0/24 becomes 10.0.0.1.
Default routes are never selected.

Fractions of the packets can be given a bad checksum, an expiring TTL or
a random destination so every verdict shows up in a simulation.

Distributions:
  uniform - Equal probability for each destination
  zipf    - Zipf distribution (skewed, some destinations much more frequent)

Example:
  fibsim trace-gen table.bin trace.bin --flow-size 1000 --packets 1000000
  fibsim trace-gen table.bin trace.bin --dist zipf --bad-checksum 0.01 --pcap trace.pcap`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tableFile, outputFile := args[0], args[1]

		if genFlowSize <= 0 {
			return fmt.Errorf("--flow-size must be positive")
		}
		if genPacketCount <= 0 {
			return fmt.Errorf("--packets must be positive")
		}

		srcIP, err := netutil.ParseIPv4(genSrcIP)
		if err != nil {
			return fmt.Errorf("invalid source IP: %w", err)
		}

		start := time.Now()
		if genStart != "" {
			start, err = time.Parse(time.RFC3339Nano, genStart)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
		}
		seed := genSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		rules, err := fib.LoadRules(tableFile)
		if err != nil {
			return fmt.Errorf("reading table: %w", err)
		}
		dsts := hostAddresses(rules)
		if len(dsts) == 0 {
			return fmt.Errorf("no non-default prefixes found in %s", tableFile)
		}

		logger := log.Get()
		logger.WithField("path", tableFile).WithField("prefixes", len(dsts)).Info("Loaded table prefixes")

		flowSize := genFlowSize
		if flowSize > len(dsts) {
			logger.Warnf("flow-size %d > prefix count %d, using all prefixes", flowSize, len(dsts))
			flowSize = len(dsts)
		}

		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(dsts), func(i, j int) {
			dsts[i], dsts[j] = dsts[j], dsts[i]
		})
		dsts = dsts[:flowSize]

		gen, err := trace.NewGenerator(dsts, trace.GenOptions{
			Dist:             genDist,
			ZipfS:            genZipfS,
			SrcIP:            srcIP,
			TTL:              genTTL,
			BadChecksumRatio: genBadChecksum,
			ExpiredRatio:     genExpired,
			RandomDstRatio:   genRandomDst,
			Start:            start,
			Interval:         genInterval,
			Seed:             seed,
		})
		if err != nil {
			return err
		}

		file, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()
		tw := trace.NewWriter(file)

		var pw *pcapSink
		if genPCAP != "" {
			pw, err = createPCAP(genPCAP, genSrcMAC, genDstMAC)
			if err != nil {
				return err
			}
			defer pw.Close()
		}

		startTime := time.Now()
		for i := 0; i < genPacketCount; i++ {
			p, err := gen.Next()
			if err != nil {
				return fmt.Errorf("generating packet %d: %w", i+1, err)
			}
			if err := tw.Write(p); err != nil {
				return err
			}
			if pw != nil {
				if err := pw.Write(p); err != nil {
					return err
				}
			}

			if (i+1)%100000 == 0 {
				logger.Debugf("Generated %d/%d packets", i+1, genPacketCount)
			}
		}

		if err := tw.Flush(); err != nil {
			return err
		}
		if pw != nil {
			if err := pw.Close(); err != nil {
				return err
			}
		}

		elapsed := time.Since(startTime)
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %d packets to %d destinations in %s (%.0f pps)\n",
			tw.Count(), flowSize, elapsed, float64(tw.Count())/elapsed.Seconds())
		fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", outputFile)
		if pw != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "PCAP:   %s (%d frames)\n", genPCAP, pw.Count())
		}
		return nil
	},
}

// hostAddresses returns the first host of every non-default rule. A /32
// is its own host.
func hostAddresses(rules []fib.Rule) []uint32 {
	seen := make(map[uint32]struct{}, len(rules))
	dsts := make([]uint32, 0, len(rules))
	for _, r := range rules {
		if r.IsDefault() || r.PrefixLen > fib.MaxPrefixLen {
			continue
		}
		host := r.Masked()
		if r.PrefixLen < 32 {
			host++
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}
		dsts = append(dsts, host)
	}
	return dsts
}

func init() {
	flags := traceGenCmd.Flags()
	flags.IntVarP(&genFlowSize, "flow-size", "n", 100, "Number of unique destination prefixes")
	flags.IntVarP(&genPacketCount, "packets", "p", 100000, "Total number of packets to generate")
	flags.StringVarP(&genDist, "dist", "d", trace.DistUniform, "Distribution: uniform or zipf")
	flags.Float64Var(&genZipfS, "zipf-s", 1.1, "Zipf s parameter (must be > 1, higher = more skewed)")
	flags.StringVar(&genSrcIP, "src-ip", "10.0.0.1", "Source IP address")
	flags.Uint8Var(&genTTL, "ttl", 64, "TTL of regular packets")
	flags.Float64Var(&genBadChecksum, "bad-checksum", 0, "Fraction of packets with a bad checksum")
	flags.Float64Var(&genExpired, "expired", 0, "Fraction of packets with TTL 0 or 1")
	flags.Float64Var(&genRandomDst, "random-dst", 0, "Fraction of packets with a random destination")
	flags.Int64Var(&genSeed, "seed", 0, "Random seed (0 picks one from the clock)")
	flags.DurationVar(&genInterval, "interval", time.Millisecond, "Time between packet timestamps")
	flags.StringVar(&genStart, "start", "", "First packet timestamp, RFC 3339 (default now)")
	flags.StringVar(&genPCAP, "pcap", "", "Also write the trace as an Ethernet pcap file")
	flags.StringVar(&genSrcMAC, "src-mac", "00:00:00:00:00:01", "Source MAC address for --pcap")
	flags.StringVar(&genDstMAC, "dst-mac", "00:00:00:00:00:02", "Destination MAC address for --pcap")

	rootCmd.AddCommand(traceGenCmd)
}
