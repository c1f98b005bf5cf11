package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"crisim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp written on every record.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func stamp(v model.VersionedRecord) model.VersionedRecord {
	if v == (model.VersionedRecord{}) {
		return CurrentVersion()
	}
	return v
}

// EncodeNetwork marshals spec, stamping the current version when it has none.
func EncodeNetwork(spec model.NetworkSpec) ([]byte, error) {
	spec.VersionedRecord = stamp(spec.VersionedRecord)
	return json.Marshal(spec)
}

func DecodeNetwork(data []byte) (model.NetworkSpec, error) {
	var spec model.NetworkSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return model.NetworkSpec{}, err
	}
	if err := checkVersion(spec.VersionedRecord); err != nil {
		return model.NetworkSpec{}, err
	}
	return spec, nil
}

// EncodeTrace marshals trace, stamping the current version when it has none.
func EncodeTrace(trace model.Trace) ([]byte, error) {
	trace.VersionedRecord = stamp(trace.VersionedRecord)
	return json.Marshal(trace)
}

func DecodeTrace(data []byte) (model.Trace, error) {
	var trace model.Trace
	if err := json.Unmarshal(data, &trace); err != nil {
		return model.Trace{}, err
	}
	if err := checkVersion(trace.VersionedRecord); err != nil {
		return model.Trace{}, err
	}
	for i, step := range trace.Steps {
		if len(step) != len(trace.Outputs) {
			return model.Trace{}, fmt.Errorf("trace %s step %d: %d values for %d outputs", trace.ID, i, len(step), len(trace.Outputs))
		}
	}
	return trace, nil
}

// Summarize returns the listing form of trace.
func Summarize(trace model.Trace) model.TraceSummary {
	return model.TraceSummary{
		ID:           trace.ID,
		NetworkID:    trace.NetworkID,
		CreatedAtUTC: trace.CreatedAtUTC,
		Seed:         trace.Seed,
		Steps:        len(trace.Steps),
		Outputs:      len(trace.Outputs),
	}
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
