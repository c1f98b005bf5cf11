package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crisim/internal/model"
	"crisim/pkg/crisim"

	"github.com/spf13/cobra"
)

const (
	payloadPath = "../../examples/hs_api_example.yaml"
	goldenPath  = "../../examples/hs_api_example.golden.json"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "crisimctl",
		SilenceUsage: true,
	}
	addGlobalFlags(rootCmd)
	return rootCmd
}

// isolateEnv clears the settings environment overrides for the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CRISIM_LOG_LEVEL", "CRISIM_STORE", "CRISIM_DB_PATH", "CRISIM_CACHE_SIZE"} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(sub)
	rootCmd.SetArgs(args)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNewCommands(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{newVersionCmd(), "version", nil},
		{newRunCmd(), "run", []string{"config", "steps", "firing", "seed", "persist", "verbose"}},
		{newValidateCmd(), "validate", []string{"config"}},
		{newVerifyCmd(), "verify", []string{"config", "golden"}},
		{newBatchCmd(), "batch", []string{"config", "seeds", "workers", "persist"}},
		{newTracesCmd(), "traces", []string{"network", "limit"}},
		{newExportCmd(), "export", []string{"trace", "latest", "out"}},
	}
	for _, tt := range tests {
		if tt.cmd.Use != tt.use {
			t.Errorf("Use = %q, want %q", tt.cmd.Use, tt.use)
		}
		for _, name := range tt.flags {
			if tt.cmd.Flags().Lookup(name) == nil {
				t.Errorf("%s: missing --%s flag", tt.use, name)
			}
		}
	}
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	rootCmd := newRootCmd()
	for _, name := range []string{"version", "run", "validate", "verify", "batch", "traces", "export"} {
		if _, _, err := rootCmd.Find([]string{name}); err != nil {
			t.Errorf("missing subcommand %s: %v", name, err)
		}
	}
	for _, name := range []string{"json", "settings", "log-level", "store", "db"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}
}

func TestVersionCmdJSON(t *testing.T) {
	out, err := execute(t, newVersionCmd(), "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got["version"] != version {
		t.Fatalf("unexpected version: got=%q want=%q", got["version"], version)
	}
}

func TestRunCmdJSON(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, newRunCmd(), "run", "--config", payloadPath, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got struct {
		NetworkID    string   `json:"network_id"`
		Outputs      []string `json:"outputs"`
		Steps        [][]bool `json:"steps"`
		OutputSpikes int      `json:"output_spikes"`
		Persisted    bool     `json:"persisted"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.NetworkID != "hs-api-example" {
		t.Fatalf("unexpected network id: %q", got.NetworkID)
	}
	if len(got.Steps) != 10 || len(got.Outputs) != 5 {
		t.Fatalf("unexpected trace shape: steps=%d outputs=%d", len(got.Steps), len(got.Outputs))
	}
	if got.OutputSpikes != 50 {
		t.Fatalf("unexpected output spikes: got=%d want=50", got.OutputSpikes)
	}
	if got.Persisted {
		t.Fatal("expected run without --persist to skip the store")
	}
}

func TestRunCmdStimulusOverride(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, newRunCmd(), "run", "--config", payloadPath, "--steps", "3", "--firing", "a0", "--verbose")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "network hs-api-example: 3 steps") {
		t.Fatalf("unexpected summary line:\n%s", out)
	}
	if !strings.Contains(out, "  step  o0 o1 o2 o3 o4") {
		t.Fatalf("expected spike table header:\n%s", out)
	}
}

func TestRunCmdRequiresConfig(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, newRunCmd(), "run")
	if err == nil || !strings.Contains(err.Error(), "--config is required") {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestRunCmdRejectsNegativeSteps(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, newRunCmd(), "run", "--config", payloadPath, "--steps=-1")
	if !errors.Is(err, model.ErrInvalidStimulus) {
		t.Fatalf("unexpected error: got=%v want=%v", err, model.ErrInvalidStimulus)
	}
}

func TestValidateCmd(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, newValidateCmd(), "validate", "--config", payloadPath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "network hs-api-example is valid: 5 axons, 10 neurons, 5 outputs") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}
	if !strings.Contains(out, "TotalMem") {
		t.Fatalf("expected size report:\n%s", out)
	}
}

func TestValidateCmdRejectsBadPayload(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	payload := "id: bad\ntarget: loihi\nconfig:\n  global_neuron_params:\n    v_thr: 10\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	_, err := execute(t, newValidateCmd(), "validate", "--config", path)
	if !errors.Is(err, crisim.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestVerifyCmd(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, newVerifyCmd(), "verify", "--config", payloadPath, "--golden", goldenPath)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out, "matches") {
		t.Fatalf("unexpected verify output:\n%s", out)
	}

	out, err = execute(t, newVerifyCmd(), "verify", "--config", payloadPath, "--golden", goldenPath, "--firing", "a0", "--json")
	if !errors.Is(err, crisim.ErrMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got["match"] != false {
		t.Fatalf("expected match=false, got %v", got["match"])
	}
}

func TestBatchCmd(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, newBatchCmd(), "batch", "--config", payloadPath, "--seeds", "1,2,3", "--workers", "2", "--json")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	var got struct {
		Results []struct {
			Label        string `json:"label"`
			Seed         int64  `json:"seed"`
			OutputSpikes int    `json:"output_spikes"`
		} `json:"results"`
		Failed int `json:"failed"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.Failed != 0 || len(got.Results) != 3 {
		t.Fatalf("unexpected batch result: failed=%d results=%d", got.Failed, len(got.Results))
	}
	for i, res := range got.Results {
		if res.Seed != int64(i+1) {
			t.Fatalf("unexpected seed order at %d: got=%d want=%d", i, res.Seed, i+1)
		}
		if res.OutputSpikes != 50 {
			t.Fatalf("unexpected output spikes for %s: got=%d want=50", res.Label, res.OutputSpikes)
		}
	}
}

func TestBatchJobsDefaultsToPayloadSeed(t *testing.T) {
	jobs := batchJobs(nil, crisim.Stimulus{Steps: 1}, 7)
	if len(jobs) != 1 || jobs[0].Seed != nil || jobs[0].Label != "seed=7" {
		t.Fatalf("unexpected default jobs: %+v", jobs)
	}
	jobs = batchJobs([]int64{4, 5}, crisim.Stimulus{Steps: 1}, 7)
	if len(jobs) != 2 || *jobs[0].Seed != 4 || *jobs[1].Seed != 5 {
		t.Fatalf("unexpected seeded jobs: %+v", jobs)
	}
}

func TestPersistTracesExportDelete(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "crisim.db")
	storeArgs := []string{"--store", "sqlite", "--db", db}

	if _, err := execute(t, newRunCmd(), append([]string{"run", "--config", payloadPath, "--persist"}, storeArgs...)...); err != nil {
		t.Fatalf("run --persist: %v", err)
	}

	out, err := execute(t, newTracesCmd(), append([]string{"traces", "--json"}, storeArgs...)...)
	if err != nil {
		t.Fatalf("traces: %v", err)
	}
	var listed struct {
		Traces []struct {
			ID        string `json:"id"`
			NetworkID string `json:"network_id"`
			Steps     int    `json:"steps"`
		} `json:"traces"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if listed.Count != 1 || listed.Traces[0].NetworkID != "hs-api-example" || listed.Traces[0].Steps != 10 {
		t.Fatalf("unexpected traces listing: %+v", listed)
	}
	traceID := listed.Traces[0].ID

	arrowPath := filepath.Join(dir, "trace.arrow")
	out, err = execute(t, newExportCmd(), append([]string{"export", "--latest", "--out", arrowPath}, storeArgs...)...)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, traceID) {
		t.Fatalf("expected exported trace id %s in %q", traceID, out)
	}
	info, err := os.Stat(arrowPath)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty arrow file: info=%v err=%v", info, err)
	}

	if _, err := execute(t, newTracesCmd(), append([]string{"traces", "delete", traceID}, storeArgs...)...); err != nil {
		t.Fatalf("traces delete: %v", err)
	}
	out, err = execute(t, newTracesCmd(), append([]string{"traces"}, storeArgs...)...)
	if err != nil {
		t.Fatalf("traces: %v", err)
	}
	if !strings.Contains(out, "No traces stored.") {
		t.Fatalf("expected empty listing, got %q", out)
	}
}

func TestExportCmdArgumentErrors(t *testing.T) {
	isolateEnv(t)
	if _, err := execute(t, newExportCmd(), "export", "--latest"); err == nil || !strings.Contains(err.Error(), "--out is required") {
		t.Fatalf("expected missing out error, got %v", err)
	}
	if _, err := execute(t, newExportCmd(), "export", "--latest", "--out", "-", "--json"); err == nil {
		t.Fatal("expected --json with stdout export to fail")
	}
}

func TestLoadSettingsFlagOverrides(t *testing.T) {
	isolateEnv(t)
	rootCmd := newTestRootCmd()
	rootCmd.SetArgs([]string{"--log-level", "trace", "--store", "sqlite", "--db", "x.db"})
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if settings.Logging.Level != "trace" || settings.Store.Kind != "sqlite" || settings.Store.Path != "x.db" {
			t.Fatalf("unexpected settings: %+v", settings)
		}
		return nil
	}
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	t.Setenv("CRISIM_STORE", "bogus")
	overridden := newTestRootCmd()
	overridden.SetArgs([]string{"--store", "memory"})
	overridden.RunE = func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if settings.Store.Kind != "memory" {
			t.Fatalf("unexpected store kind: got=%q want=%q", settings.Store.Kind, "memory")
		}
		return nil
	}
	overridden.SetOut(&bytes.Buffer{})
	overridden.SetErr(&bytes.Buffer{})
	if err := overridden.Execute(); err != nil {
		t.Fatalf("flag should override invalid env store: %v", err)
	}
	t.Setenv("CRISIM_STORE", "")

	bad := newTestRootCmd()
	bad.SetArgs([]string{"--store", "postgres"})
	bad.RunE = func(cmd *cobra.Command, args []string) error {
		_, err := loadSettings(cmd)
		return err
	}
	bad.SetOut(&bytes.Buffer{})
	bad.SetErr(&bytes.Buffer{})
	if err := bad.Execute(); err == nil {
		t.Fatal("expected invalid store kind to fail")
	}
}

func TestAge(t *testing.T) {
	if got := age("not-a-time"); got != "not-a-time" {
		t.Fatalf("unexpected fallback: got=%q", got)
	}
	if got := count(1234567); got != "1,234,567" {
		t.Fatalf("unexpected count: got=%q want=%q", got, "1,234,567")
	}
}
