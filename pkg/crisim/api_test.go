package crisim

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"crisim/internal/config"
	"crisim/internal/model"

	"github.com/apache/arrow/go/v17/arrow/ipc"
)

var (
	examplePayload = filepath.Join("..", "..", "examples", "hs_api_example.yaml")
	exampleGolden  = filepath.Join("..", "..", "examples", "hs_api_example.golden.json")
)

func newTestClient(t *testing.T, kind string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind: kind,
		DBPath:    filepath.Join(t.TempDir(), "crisim.db"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func loadExample(t *testing.T) model.NetworkSpec {
	t.Helper()
	spec, err := config.LoadNetwork(examplePayload)
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	return spec
}

func TestClientRunTracesAndExport(t *testing.T) {
	for _, kind := range []string{"memory", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			client := newTestClient(t, kind)
			spec := loadExample(t)

			summary, err := client.Run(ctx, RunRequest{Spec: spec, Persist: true})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(summary.Steps) != 10 || summary.OutputSpikes != 50 || !summary.Persisted {
				t.Fatalf("unexpected run summary: %+v", summary)
			}

			quiet := model.Stimulus{Steps: 2}
			second, err := client.Run(ctx, RunRequest{Spec: spec, Stimulus: &quiet, Persist: true})
			if err != nil {
				t.Fatalf("quiet run: %v", err)
			}
			if second.OutputSpikes != 0 {
				t.Fatalf("quiet run spiked: %+v", second)
			}

			items, err := client.Traces(ctx, TracesRequest{NetworkID: spec.ID})
			if err != nil {
				t.Fatalf("traces: %v", err)
			}
			if len(items) != 2 || items[0].ID != second.TraceID {
				t.Fatalf("unexpected trace listing: %+v", items)
			}

			trace, err := client.Trace(ctx, summary.TraceID)
			if err != nil {
				t.Fatalf("trace: %v", err)
			}
			if len(trace.Steps) != 10 {
				t.Fatalf("unexpected stored trace: %+v", trace)
			}

			var buf bytes.Buffer
			exported, err := client.Export(ctx, ExportRequest{Latest: true, Writer: &buf})
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if exported.TraceID != second.TraceID || exported.Rows != 2 {
				t.Fatalf("unexpected export summary: %+v", exported)
			}
			r, err := ipc.NewReader(&buf)
			if err != nil {
				t.Fatalf("read export: %v", err)
			}
			r.Release()

			if err := client.DeleteTrace(ctx, summary.TraceID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := client.Trace(ctx, summary.TraceID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestClientRunRequiresStimulus(t *testing.T) {
	client := newTestClient(t, "memory")
	spec := loadExample(t)
	spec.Stimulus = nil
	if _, err := client.Run(context.Background(), RunRequest{Spec: spec}); err == nil {
		t.Fatal("expected missing stimulus error")
	}
}

func TestClientRejectsNegativeSteps(t *testing.T) {
	client := newTestClient(t, "memory")
	spec := loadExample(t)

	negative := model.Stimulus{Steps: -1, Firing: []string{"a0"}}
	if _, err := client.Run(context.Background(), RunRequest{Spec: spec, Stimulus: &negative}); !errors.Is(err, model.ErrInvalidStimulus) {
		t.Fatalf("unexpected run error: got=%v want=%v", err, model.ErrInvalidStimulus)
	}

	spec.Stimulus = &negative
	_, err := client.Verify(context.Background(), VerifyRequest{Spec: spec, GoldenPath: exampleGolden})
	if !errors.Is(err, model.ErrInvalidStimulus) {
		t.Fatalf("unexpected verify error: got=%v want=%v", err, model.ErrInvalidStimulus)
	}
}

func TestClientRunConfigError(t *testing.T) {
	client := newTestClient(t, "memory")
	spec := loadExample(t)
	spec.Outputs = append(spec.Outputs, "ghost")
	if _, err := client.Run(context.Background(), RunRequest{Spec: spec}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestClientVerify(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "memory")
	spec := loadExample(t)
	golden := exampleGolden

	summary, err := client.Verify(ctx, VerifyRequest{Spec: spec, GoldenPath: golden})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if summary.Steps != 10 || summary.Outputs != 5 {
		t.Fatalf("unexpected verify summary: %+v", summary)
	}

	weaker := model.Stimulus{Steps: 10, Firing: []string{"a0"}}
	if _, err := client.Verify(ctx, VerifyRequest{Spec: spec, Stimulus: &weaker, GoldenPath: golden}); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestClientBatch(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "memory")
	spec := loadExample(t)

	jobs := []Job{
		{Label: "strong", Stimulus: model.Stimulus{Steps: 3, Firing: []string{"a0", "a1"}}},
		{Label: "weak", Stimulus: model.Stimulus{Steps: 3, Firing: []string{"a0"}}},
	}
	results, err := client.Batch(ctx, BatchRequest{Spec: spec, Jobs: jobs, Workers: 2, Persist: true})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 2 || results[0].Label != "strong" || results[0].Trace.ID == "" {
		t.Fatalf("unexpected batch results: %+v", results)
	}
	items, err := client.Traces(ctx, TracesRequest{})
	if err != nil || len(items) != 2 {
		t.Fatalf("unexpected stored batch traces: %+v err=%v", items, err)
	}
}

func TestClientValidateAndNewNetwork(t *testing.T) {
	client := newTestClient(t, "memory")
	spec := loadExample(t)

	summary, err := client.Validate(context.Background(), spec)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if summary.Axons != 5 || summary.Neurons != 10 || summary.Outputs != 5 || summary.SizeReport == "" {
		t.Fatalf("unexpected validate summary: %+v", summary)
	}

	net, err := client.NewNetwork(spec)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	spikes, err := net.Step([]string{"a0", "a1", "a2"})
	if err != nil || len(spikes) != 5 {
		t.Fatalf("unexpected step: spikes=%v err=%v", spikes, err)
	}
}

func TestClientExportArguments(t *testing.T) {
	client := newTestClient(t, "memory")
	ctx := context.Background()
	var buf bytes.Buffer
	if _, err := client.Export(ctx, ExportRequest{TraceID: "x", Latest: true, Writer: &buf}); err == nil {
		t.Fatal("expected conflicting selector error")
	}
	if _, err := client.Export(ctx, ExportRequest{Writer: &buf}); err == nil {
		t.Fatal("expected missing selector error")
	}
	if _, err := client.Export(ctx, ExportRequest{Latest: true, Writer: &buf}); err == nil {
		t.Fatal("expected empty store error")
	}
}
