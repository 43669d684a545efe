// Package main implements the tsgopipe CLI: it assembles and runs a
// pipeline from a YAML config file, in the style of the teacher's
// cobra root command (persistent --config flag, versioned root command).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:     "tsgopipe",
	Short:   "tsgopipe runs a multi-threaded TS packet processing pipeline",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/tsgopipe/config.yml",
		"pipeline config file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
