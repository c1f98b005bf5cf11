package main

import (
	"fmt"
	"strconv"

	"crisim/internal/model"
	"crisim/pkg/crisim"

	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run one payload under several seeds concurrently",
		Long: `Run independent copies of the payload, one per seed, on a bounded worker
pool. Each copy owns its network; results are printed in seed order.

Example:
  crisimctl batch --config net.yaml --seeds 1,2,3,4 --workers 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			seeds, _ := cmd.Flags().GetInt64Slice("seeds")
			workers, _ := cmd.Flags().GetInt("workers")
			persist, _ := cmd.Flags().GetBool("persist")

			spec, err := loadPayload(cmd)
			if err != nil {
				return err
			}
			stimulus := stimulusOverride(cmd, spec)
			if stimulus == nil {
				if spec.Stimulus == nil {
					return fmt.Errorf("payload has no stimulus; set --steps and --firing")
				}
				stimulus = spec.Stimulus
			}
			jobs := batchJobs(seeds, *stimulus, spec.Config.Seed)

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			results, err := client.Batch(cmd.Context(), crisim.BatchRequest{
				Spec:    spec,
				Jobs:    jobs,
				Workers: workers,
				Persist: persist,
			})
			if err != nil {
				return err
			}

			failed := 0
			rows := make([]map[string]interface{}, 0, len(results))
			for _, res := range results {
				row := map[string]interface{}{"label": res.Label}
				if res.Err != nil {
					failed++
					row["error"] = res.Err.Error()
				} else {
					row["trace_id"] = res.Trace.ID
					row["seed"] = res.Trace.Seed
					row["steps"] = len(res.Trace.Steps)
					row["output_spikes"] = countSpikes(res.Trace.Steps)
				}
				rows = append(rows, row)
			}

			if jsonOut {
				if err := writeJSON(cmd, map[string]interface{}{"results": rows, "failed": failed}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, res := range results {
					if res.Err != nil {
						fmt.Fprintf(out, "%-12s error: %v\n", res.Label, res.Err)
						continue
					}
					fmt.Fprintf(out, "%-12s %s steps, %s output spikes", res.Label,
						count(len(res.Trace.Steps)), count(countSpikes(res.Trace.Steps)))
					if res.Trace.ID != "" {
						fmt.Fprintf(out, "  trace %s", res.Trace.ID)
					}
					fmt.Fprintln(out)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Network payload (.yaml, .yml, .toml or .json)")
	cmd.Flags().Int64Slice("seeds", nil, "Perturbation seeds, one job each (default: the payload seed)")
	cmd.Flags().Int("workers", 0, "Maximum concurrent jobs (default: number of CPUs)")
	cmd.Flags().Int("steps", 0, "Override the number of steps")
	cmd.Flags().StringSlice("firing", nil, "Override the firing axons (comma-separated ids)")
	cmd.Flags().Bool("persist", false, "Save the network and every trace to the store")
	return cmd
}

func batchJobs(seeds []int64, stimulus model.Stimulus, payloadSeed int64) []crisim.Job {
	if len(seeds) == 0 {
		return []crisim.Job{{Label: "seed=" + strconv.FormatInt(payloadSeed, 10), Stimulus: stimulus}}
	}
	jobs := make([]crisim.Job, 0, len(seeds))
	for _, seed := range seeds {
		jobs = append(jobs, crisim.Job{
			Label:    "seed=" + strconv.FormatInt(seed, 10),
			Seed:     &seed,
			Stimulus: stimulus,
		})
	}
	return jobs
}
