// Package oilctl is the thin glue CLI that drives the OIL pipeline. It is
// not a user-facing REPL or onboarding surface, just enough cobra-root
// scaffolding to exercise the pipeline end to end.
package oilctl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X .../cmd/oilctl.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "oilctl",
	Short: "oilctl drives the OIL engine pipeline from the command line",
	Long: "oilctl reads OIL lines and runs them through the parser, " +
		"resolver, translator, and intent engine against a pluggable Backend " +
		"(an in-memory fake by default, or a real extension over WebSocket).",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: oilengine.json5 or $OILENGINE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(intentsCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("oilctl %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("OILENGINE_CONFIG"); v != "" {
		return v
	}
	return "oilengine.json5"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
