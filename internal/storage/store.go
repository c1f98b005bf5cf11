package storage

import (
	"context"
	"errors"

	"crisim/internal/model"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrNotInitialized = errors.New("store is not initialized")
)

// Store persists network payloads and recorded traces.
type Store interface {
	Init(ctx context.Context) error
	SaveNetwork(ctx context.Context, spec model.NetworkSpec) error
	GetNetwork(ctx context.Context, id string) (model.NetworkSpec, bool, error)
	SaveTrace(ctx context.Context, trace model.Trace) error
	GetTrace(ctx context.Context, id string) (model.Trace, bool, error)
	// ListTraces returns summaries ordered by creation time, then id. An empty
	// networkID lists every trace.
	ListTraces(ctx context.Context, networkID string) ([]model.TraceSummary, error)
	DeleteTrace(ctx context.Context, id string) error
}
