package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Global flag values.
var (
	logLevel string
	logJSON  bool
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "VBOA HMI backend",
	Long: `api serves the VBOA HMI backend: alert listings, vis-timeline payloads
with nested groups built from delimiter-separated paths, saved sliding
views and service status.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides APP_LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs; overrides APP_LOG_JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(versionCmd)
}
