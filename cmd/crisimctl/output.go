package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"crisim/internal/config"
	"crisim/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadPayload(cmd *cobra.Command) (model.NetworkSpec, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return model.NetworkSpec{}, fmt.Errorf("--config is required")
	}
	return config.LoadNetwork(path)
}

// stimulusOverride builds a stimulus from --steps and --firing. It returns nil
// when neither flag is set so the payload stimulus applies.
func stimulusOverride(cmd *cobra.Command, spec model.NetworkSpec) *model.Stimulus {
	stepsSet := cmd.Flags().Changed("steps")
	firingSet := cmd.Flags().Changed("firing")
	if !stepsSet && !firingSet {
		return nil
	}
	stimulus := model.Stimulus{}
	if spec.Stimulus != nil {
		stimulus = *spec.Stimulus
	}
	if stepsSet {
		stimulus.Steps, _ = cmd.Flags().GetInt("steps")
	}
	if firingSet {
		stimulus.Firing, _ = cmd.Flags().GetStringSlice("firing")
		stimulus.Schedule = nil
	}
	return &stimulus
}

func writeSpikeTable(w io.Writer, outputs []string, steps [][]bool) {
	fmt.Fprintf(w, "%6s  %s\n", "step", strings.Join(outputs, " "))
	for i, vector := range steps {
		cells := make([]string, len(vector))
		for j, fired := range vector {
			mark := "."
			if fired {
				mark = "1"
			}
			cells[j] = fmt.Sprintf("%*s", len(outputs[j]), mark)
		}
		fmt.Fprintf(w, "%6d  %s\n", i, strings.Join(cells, " "))
	}
}

func countSpikes(steps [][]bool) int {
	total := 0
	for _, vector := range steps {
		for _, fired := range vector {
			if fired {
				total++
			}
		}
	}
	return total
}

// age renders a stored timestamp relative to now.
func age(createdAtUTC string) string {
	ts, err := time.Parse(model.TimestampLayout, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(ts)
}

func count(n int) string {
	return humanize.Comma(int64(n))
}
