package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - unified completion gateway and task manager",
	Long: `Ganymede fronts multiple LLM vendors behind one streaming completion API.

It runs completions as background tasks with a durable, resumable event
stream, and wraps every provider call in circuit breaking, rate limiting,
response caching, cross-provider fallback, and cost tracking.

For more information, visit: https://github.com/mercator-hq/ganymede`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
