package main

import (
	"errors"
	"fmt"

	"crisim/pkg/crisim"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay a payload and compare it with a golden trace",
		Long: `Replay the payload stimulus and compare every step with the golden trace.
The command fails on the first differing step and output.

Example:
  crisimctl verify --config examples/hs_api_example.yaml --golden golden.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			golden, _ := cmd.Flags().GetString("golden")
			if golden == "" {
				return fmt.Errorf("--golden is required")
			}

			spec, err := loadPayload(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Verify(cmd.Context(), crisim.VerifyRequest{
				Spec:       spec,
				Stimulus:   stimulusOverride(cmd, spec),
				GoldenPath: golden,
			})
			if jsonOut && (err == nil || errors.Is(err, crisim.ErrMismatch)) {
				result := map[string]interface{}{
					"network_id": summary.NetworkID,
					"steps":      summary.Steps,
					"outputs":    summary.Outputs,
					"match":      err == nil,
				}
				if err != nil {
					result["error"] = err.Error()
				}
				if encErr := writeJSON(cmd, result); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "network %s matches %s (%s steps x %s outputs)\n",
				summary.NetworkID, golden, count(summary.Steps), count(summary.Outputs))
			return nil
		},
	}

	cmd.Flags().String("config", "", "Network payload (.yaml, .yml, .toml or .json)")
	cmd.Flags().String("golden", "", "Golden trace (JSON)")
	cmd.Flags().Int("steps", 0, "Override the number of steps")
	cmd.Flags().StringSlice("firing", nil, "Override the firing axons (comma-separated ids)")
	return cmd
}
