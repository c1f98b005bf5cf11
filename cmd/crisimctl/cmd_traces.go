package main

import (
	"fmt"

	"crisim/pkg/crisim"

	"github.com/spf13/cobra"
)

func newTracesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traces",
		Short: "List stored traces, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			networkID, _ := cmd.Flags().GetString("network")
			limit, _ := cmd.Flags().GetInt("limit")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			traces, err := client.Traces(cmd.Context(), crisim.TracesRequest{NetworkID: networkID, Limit: limit})
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]interface{}{"traces": traces, "count": len(traces)})
			}
			out := cmd.OutOrStdout()
			if len(traces) == 0 {
				fmt.Fprintln(out, "No traces stored.")
				return nil
			}
			for _, tr := range traces {
				fmt.Fprintf(out, "%s  %-16s seed=%-6d %s steps x %s outputs  %s\n",
					tr.ID, tr.NetworkID, tr.Seed, count(tr.Steps), count(tr.Outputs), age(tr.CreatedAtUTC))
			}
			return nil
		},
	}

	cmd.Flags().String("network", "", "Only list traces of this network id")
	cmd.Flags().Int("limit", 20, "Maximum traces to list (0 for all)")
	cmd.AddCommand(newTracesDeleteCmd())
	return cmd
}

func newTracesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trace-id>",
		Short: "Delete a stored trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.DeleteTrace(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trace %s deleted\n", args[0])
			return nil
		},
	}
}
