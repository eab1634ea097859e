package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Batch verification runs",
}

var batchRunCmd = &cobra.Command{
	Use:   "run <batch-id>",
	Short: "Run verification for every pending contact in a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		batchID := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Orchestrator.Run(ctx, batchID)
		if err != nil {
			return eris.Wrapf(err, "run batch %s", batchID)
		}

		return printJSON(summary)
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status <batch-id>",
	Short: "Print progress counters for a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		progress, err := env.Orchestrator.GetBatchProgress(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "batch progress %s", args[0])
		}

		return printJSON(progress)
	},
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	batchCmd.AddCommand(batchRunCmd)
	batchCmd.AddCommand(batchStatusCmd)
	rootCmd.AddCommand(batchCmd)
}
