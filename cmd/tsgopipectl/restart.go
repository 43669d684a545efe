package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsgopipe/tsgopipe/internal/control"
)

var (
	restartStageIndex int
	restartArgsJSON   string
	restartSameArgs   bool
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "restart one stage in place, per pipeline-design.md's online restart protocol",
	Long: "restart reconfigures a running stage without stopping the pipeline: " +
		"either --same-args (reuse the stage's current options) or --args (a JSON " +
		"object of new plugin options; if the stage rejects them it falls back to " +
		"its current options).",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stageArgs map[string]any
		if restartArgsJSON != "" {
			if err := json.Unmarshal([]byte(restartArgsJSON), &stageArgs); err != nil {
				return fmt.Errorf("--args: invalid JSON: %w", err)
			}
		}
		resp, err := control.NewClient(socketPath).Restart(restartStageIndex, stageArgs, restartSameArgs)
		if err != nil {
			return err
		}
		for _, line := range resp.Log {
			fmt.Println(line)
		}
		if !resp.OK {
			return fmt.Errorf("restart failed: %s", resp.Error)
		}
		fmt.Println("restart completed")
		return nil
	},
}

func init() {
	restartCmd.Flags().IntVarP(&restartStageIndex, "stage", "i", 0, "stage index to restart (required)")
	restartCmd.Flags().StringVarP(&restartArgsJSON, "args", "a", "", "new plugin options, as a JSON object")
	restartCmd.Flags().BoolVar(&restartSameArgs, "same-args", false, "reuse the stage's current options")
	restartCmd.MarkFlagRequired("stage")
}
