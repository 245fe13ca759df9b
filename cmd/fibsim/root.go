package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/config"
	"github.com/DuoChen-317/csds425-projs/internal/fib"
	"github.com/DuoChen-317/csds425-projs/internal/log"
)

var (
	cfgFile   string
	tablePath string
	tracePath string

	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fibsim",
	Short: "Offline longest-prefix-match router simulator",
	Long: `fibsim replays a binary packet trace against a static forwarding table.

Every packet is checked for a valid checksum and a live TTL, then routed by
longest prefix match, falling back to the default route (any rule for
0.0.0.0). One decision line is printed per packet, in trace order:

  <timestamp> drop checksum | drop expired | drop policy |
              send <n> | default <n> | drop unknown

Configuration is read from --config (YAML) and FIBSIM_* environment
variables; flags take precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		log.Init(cfg.Log)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&tablePath, "table", "f", "", "Binary forwarding table file")
	flags.StringVarP(&tracePath, "trace", "t", "", "Binary packet trace file")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text, json")

	bindFlag("log.level", flags.Lookup("log-level"))
	bindFlag("log.format", flags.Lookup("log-format"))
}

func requireTable() error {
	if tablePath == "" {
		return fmt.Errorf("no forwarding table file specified (-f <filename>)")
	}
	return nil
}

func requireTrace() error {
	if tracePath == "" {
		return fmt.Errorf("no trace file specified (-t <filename>)")
	}
	return nil
}

func conflictPolicy() fib.ConflictPolicy {
	if cfg.Simulate.ConflictPolicy == config.PolicyKeepFirst {
		return fib.ConflictKeepFirst
	}
	return fib.ConflictAbort
}
