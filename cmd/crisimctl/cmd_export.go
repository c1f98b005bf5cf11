package main

import (
	"fmt"
	"io"
	"os"

	"crisim/pkg/crisim"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored trace as an Arrow IPC stream",
		Long: `Write one stored trace as an Arrow IPC stream with a "step" column and
one boolean column per recorded output.

Examples:
  crisimctl export --latest --out trace.arrow --store sqlite
  crisimctl export --trace 5f0c... --out - > trace.arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			traceID, _ := cmd.Flags().GetString("trace")
			latest, _ := cmd.Flags().GetBool("latest")
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				return fmt.Errorf("--out is required (use - for stdout)")
			}
			if outPath == "-" && jsonOut {
				return fmt.Errorf("--json cannot be combined with --out -")
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			var w io.Writer = cmd.OutOrStdout()
			var f *os.File
			if outPath != "-" {
				f, err = os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				w = f
			}

			summary, err := client.Export(cmd.Context(), crisim.ExportRequest{TraceID: traceID, Latest: latest, Writer: w})
			if f != nil {
				if closeErr := f.Close(); err == nil && closeErr != nil {
					err = fmt.Errorf("close %s: %w", outPath, closeErr)
				}
				if err != nil {
					_ = os.Remove(outPath)
				}
			}
			if err != nil {
				return err
			}

			if outPath == "-" {
				return nil
			}
			if jsonOut {
				return writeJSON(cmd, map[string]interface{}{
					"trace_id": summary.TraceID,
					"rows":     summary.Rows,
					"path":     outPath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported trace %s (%s rows) to %s\n", summary.TraceID, count(summary.Rows), outPath)
			return nil
		},
	}

	cmd.Flags().String("trace", "", "Trace id to export")
	cmd.Flags().Bool("latest", false, "Export the most recent trace")
	cmd.Flags().String("out", "", "Output file, or - for stdout")
	return cmd
}
