// Package main implements tsgopipectl, the companion CLI that dials a
// running pipeline's control socket (internal/control) and issues a
// single restart/abort/status command per invocation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:     "tsgopipectl",
	Short:   "tsgopipectl drives a running tsgopipe pipeline over its control socket",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/tsgopipe.sock",
		"pipeline control socket path")
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(restartCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
