package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a network payload and report its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			spec, err := loadPayload(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Validate(cmd.Context(), spec)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]interface{}{
					"valid":      true,
					"network_id": summary.NetworkID,
					"axons":      summary.Axons,
					"neurons":    summary.Neurons,
					"outputs":    summary.Outputs,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "network %s is valid: %s axons, %s neurons, %s outputs\n\n",
				summary.NetworkID, count(summary.Axons), count(summary.Neurons), count(summary.Outputs))
			fmt.Fprint(out, summary.SizeReport)
			return nil
		},
	}

	cmd.Flags().String("config", "", "Network payload (.yaml, .yml, .toml or .json)")
	return cmd
}
