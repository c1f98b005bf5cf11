package export

import (
	"bytes"
	"testing"

	"crisim/internal/model"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
)

func TestWriteTraceIPCRoundTrip(t *testing.T) {
	trace := model.Trace{
		ID:        "t1",
		NetworkID: "n1",
		Seed:      5,
		Outputs:   []string{"o0", "o1"},
		Steps:     [][]bool{{true, false}, {false, true}, {true, true}},
	}
	var buf bytes.Buffer
	if err := WriteTraceIPC(&buf, trace); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := ipc.NewReader(&buf)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Release()

	schema := r.Schema()
	if schema.NumFields() != 3 || schema.Field(1).Name != "o0" {
		t.Fatalf("unexpected schema: %v", schema)
	}
	md := schema.Metadata()
	if idx := md.FindKey("network_id"); idx < 0 || md.Values()[idx] != "n1" {
		t.Fatalf("unexpected metadata: %v", md)
	}

	if !r.Next() {
		t.Fatalf("expected a record: %v", r.Err())
	}
	rec := r.Record()
	if rec.NumRows() != 3 {
		t.Fatalf("unexpected row count: %d", rec.NumRows())
	}
	steps := rec.Column(0).(*array.Int64)
	o1 := rec.Column(2).(*array.Boolean)
	for i := 0; i < 3; i++ {
		if steps.Value(i) != int64(i) {
			t.Fatalf("unexpected step %d: %d", i, steps.Value(i))
		}
		if o1.Value(i) != trace.Steps[i][1] {
			t.Fatalf("unexpected o1 at step %d", i)
		}
	}
}

func TestWriteTraceIPCRejectsBadTraces(t *testing.T) {
	var buf bytes.Buffer
	ragged := model.Trace{Outputs: []string{"o0"}, Steps: [][]bool{{true, false}}}
	if err := WriteTraceIPC(&buf, ragged); err == nil {
		t.Fatal("expected ragged trace error")
	}
	clash := model.Trace{Outputs: []string{StepColumn}}
	if err := WriteTraceIPC(&buf, clash); err == nil {
		t.Fatal("expected column name clash error")
	}
}
