package main

import (
	"fmt"

	"crisim/pkg/crisim"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a network payload and print its output spikes",
		Long: `Build the network described by --config and drive it with the payload
stimulus, or with --steps/--firing when given.

Examples:
  crisimctl run --config examples/hs_api_example.yaml
  crisimctl run --config net.toml --steps 20 --firing a0,a1 --persist --store sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			verbose, _ := cmd.Flags().GetBool("verbose")
			persist, _ := cmd.Flags().GetBool("persist")

			spec, err := loadPayload(cmd)
			if err != nil {
				return err
			}
			req := crisim.RunRequest{
				Spec:     spec,
				Stimulus: stimulusOverride(cmd, spec),
				Persist:  persist,
			}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetInt64("seed")
				req.Seed = &seed
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]interface{}{
					"trace_id":      summary.TraceID,
					"network_id":    summary.NetworkID,
					"seed":          summary.Seed,
					"outputs":       summary.Outputs,
					"steps":         summary.Steps,
					"output_spikes": summary.OutputSpikes,
					"persisted":     summary.Persisted,
				})
			}

			out := cmd.OutOrStdout()
			if verbose {
				writeSpikeTable(out, summary.Outputs, summary.Steps)
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "network %s: %s steps, %s output spikes (seed %d)\n",
				summary.NetworkID, count(len(summary.Steps)), count(summary.OutputSpikes), summary.Seed)
			if summary.Persisted {
				fmt.Fprintf(out, "trace %s saved\n", summary.TraceID)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Network payload (.yaml, .yml, .toml or .json)")
	cmd.Flags().Int("steps", 0, "Override the number of steps")
	cmd.Flags().StringSlice("firing", nil, "Override the firing axons (comma-separated ids)")
	cmd.Flags().Int64("seed", 0, "Override the perturbation seed")
	cmd.Flags().Bool("persist", false, "Save the network and trace to the store")
	cmd.Flags().BoolP("verbose", "v", false, "Print the per-step spike table")
	return cmd
}
