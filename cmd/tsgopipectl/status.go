package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsgopipe/tsgopipe/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the running pipeline's packet/abort/restart counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := control.NewClient(socketPath).Status()
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("status failed: %s", resp.Error)
		}
		s := resp.Stats
		fmt.Printf("input=%d output=%d dropped=%d aborts=%d restarts=%d (errors=%d)\n",
			s.InputPackets, s.OutputPackets, s.DroppedPackets, s.AbortCount, s.RestartCount, s.RestartErrors)
		return nil
	},
}
