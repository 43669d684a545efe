package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsgopipe/tsgopipe/internal/control"
)

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "abort the running pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := control.NewClient(socketPath).Abort()
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("abort failed: %s", resp.Error)
		}
		fmt.Println("abort requested")
		return nil
	},
}
