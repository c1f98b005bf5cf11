package export

import (
	"fmt"
	"io"
	"strconv"

	"crisim/internal/model"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

const StepColumn = "step"

// TraceSchema is a step column followed by one boolean column per output.
// Trace identity travels in the schema metadata.
func TraceSchema(trace model.Trace) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(trace.Outputs)+1)
	fields = append(fields, arrow.Field{Name: StepColumn, Type: arrow.PrimitiveTypes.Int64})
	for _, id := range trace.Outputs {
		fields = append(fields, arrow.Field{Name: id, Type: arrow.FixedWidthTypes.Boolean})
	}
	md := arrow.NewMetadata(
		[]string{"trace_id", "network_id", "seed", "created_at_utc"},
		[]string{trace.ID, trace.NetworkID, strconv.FormatInt(trace.Seed, 10), trace.CreatedAtUTC},
	)
	return arrow.NewSchema(fields, &md)
}

// WriteTraceIPC writes trace to w as an Arrow IPC stream holding one record
// batch.
func WriteTraceIPC(w io.Writer, trace model.Trace) error {
	for _, id := range trace.Outputs {
		if id == StepColumn {
			return fmt.Errorf("output id %q collides with the step column", id)
		}
	}

	mem := memory.NewGoAllocator()
	schema := TraceSchema(trace)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	steps := b.Field(0).(*array.Int64Builder)
	steps.Reserve(len(trace.Steps))
	for i, vector := range trace.Steps {
		if len(vector) != len(trace.Outputs) {
			return fmt.Errorf("trace %s step %d: %d values for %d outputs", trace.ID, i, len(vector), len(trace.Outputs))
		}
		steps.Append(int64(i))
		for j, fired := range vector {
			b.Field(j + 1).(*array.BooleanBuilder).Append(fired)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write record: %w", err)
	}
	return writer.Close()
}
