package crisim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"crisim/internal/batch"
	"crisim/internal/export"
	"crisim/internal/logging"
	"crisim/internal/model"
	"crisim/internal/network"
	"crisim/internal/parity"
	"crisim/internal/storage"

	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
)

const defaultDBPath = "crisim.db"

type (
	Network     = network.Network
	NetworkSpec = model.NetworkSpec
	Stimulus    = model.Stimulus
	Trace       = model.Trace
	Job         = batch.Job
	JobResult   = batch.Result
)

var (
	ErrConfig   = network.ErrConfig
	ErrMismatch = parity.ErrMismatch
	ErrNotFound = storage.ErrNotFound
)

type Options struct {
	StoreKind string
	DBPath    string
	// CacheSize is the sqlite page cache budget; zero keeps the default.
	CacheSize datasize.ByteSize
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
}

type RunRequest struct {
	Spec model.NetworkSpec
	// Stimulus overrides the stimulus of the payload.
	Stimulus *model.Stimulus
	// Seed overrides the perturbation seed of the payload.
	Seed    *int64
	Persist bool
}

type RunSummary struct {
	TraceID      string
	NetworkID    string
	Seed         int64
	Outputs      []string
	Steps        [][]bool
	OutputSpikes int
	Persisted    bool
}

type ValidateSummary struct {
	NetworkID  string
	Axons      int
	Neurons    int
	Outputs    int
	SizeReport string
}

type VerifyRequest struct {
	Spec       model.NetworkSpec
	Stimulus   *model.Stimulus
	GoldenPath string
}

type VerifySummary struct {
	NetworkID string
	Steps     int
	Outputs   int
}

type BatchRequest struct {
	Spec    model.NetworkSpec
	Jobs    []batch.Job
	Workers int
	Persist bool
}

type TracesRequest struct {
	NetworkID string
	Limit     int
}

type ExportRequest struct {
	TraceID string
	Latest  bool
	Writer  io.Writer
}

type ExportSummary struct {
	TraceID string
	Rows    int
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath, storage.WithCacheSize(opts.CacheSize))
	if err != nil {
		return nil, err
	}
	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the store. It runs implicitly before the first store access.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// NewNetwork builds a network for direct stepping.
func (c *Client) NewNetwork(spec model.NetworkSpec) (*Network, error) {
	return network.Build(spec, network.WithLogger(c.logger))
}

func (c *Client) Validate(_ context.Context, spec model.NetworkSpec) (ValidateSummary, error) {
	net, err := c.NewNetwork(spec)
	if err != nil {
		return ValidateSummary{}, err
	}
	return ValidateSummary{
		NetworkID:  net.ID(),
		Axons:      len(net.Axons()),
		Neurons:    len(net.Neurons()),
		Outputs:    len(net.Outputs()),
		SizeReport: net.SizeReport(),
	}, nil
}

func resolveStimulus(spec model.NetworkSpec, override *model.Stimulus) (model.Stimulus, error) {
	var stimulus model.Stimulus
	switch {
	case override != nil:
		stimulus = *override
	case spec.Stimulus != nil:
		stimulus = *spec.Stimulus
	default:
		return model.Stimulus{}, errors.New("no stimulus: set one in the payload or the request")
	}
	if err := stimulus.Validate(); err != nil {
		return model.Stimulus{}, err
	}
	return stimulus, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	stimulus, err := resolveStimulus(req.Spec, req.Stimulus)
	if err != nil {
		return RunSummary{}, err
	}
	opts := []network.Option{network.WithLogger(c.logger)}
	if req.Seed != nil {
		opts = append(opts, network.WithSeed(*req.Seed))
	}
	net, err := network.Build(req.Spec, opts...)
	if err != nil {
		return RunSummary{}, err
	}

	trace, err := parity.ReplayContext(ctx, net, stimulus)
	if err != nil {
		return RunSummary{}, err
	}
	trace.ID = uuid.NewString()

	summary := RunSummary{
		TraceID:   trace.ID,
		NetworkID: trace.NetworkID,
		Seed:      trace.Seed,
		Outputs:   trace.Outputs,
		Steps:     trace.Steps,
	}
	for _, vector := range trace.Steps {
		for _, fired := range vector {
			if fired {
				summary.OutputSpikes++
			}
		}
	}

	if req.Persist {
		spec := net.Spec()
		spec.Stimulus = &stimulus
		if err := c.persist(ctx, spec, trace); err != nil {
			return RunSummary{}, err
		}
		summary.Persisted = true
	}
	c.logger.Info("run complete",
		"trace_id", trace.ID,
		"network_id", trace.NetworkID,
		"steps", len(trace.Steps),
		"output_spikes", summary.OutputSpikes,
		"persisted", summary.Persisted,
	)
	return summary, nil
}

func (c *Client) persist(ctx context.Context, spec model.NetworkSpec, trace model.Trace) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	if spec.ID != "" {
		if err := c.store.SaveNetwork(ctx, spec); err != nil {
			return fmt.Errorf("save network %s: %w", spec.ID, err)
		}
	}
	if err := c.store.SaveTrace(ctx, trace); err != nil {
		return fmt.Errorf("save trace %s: %w", trace.ID, err)
	}
	return nil
}

// Verify replays the stimulus and compares the result with the golden trace
// at GoldenPath. A difference is returned as an error matching ErrMismatch.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (VerifySummary, error) {
	if req.GoldenPath == "" {
		return VerifySummary{}, errors.New("verify requires a golden trace path")
	}
	stimulus, err := resolveStimulus(req.Spec, req.Stimulus)
	if err != nil {
		return VerifySummary{}, err
	}
	want, err := parity.LoadGolden(req.GoldenPath)
	if err != nil {
		return VerifySummary{}, err
	}
	net, err := network.Build(req.Spec, network.WithLogger(c.logger))
	if err != nil {
		return VerifySummary{}, err
	}
	got, err := parity.ReplayContext(ctx, net, stimulus)
	if err != nil {
		return VerifySummary{}, err
	}
	summary := VerifySummary{NetworkID: got.NetworkID, Steps: len(got.Steps), Outputs: len(got.Outputs)}
	if err := parity.Compare(got, want); err != nil {
		return summary, err
	}
	return summary, nil
}

func (c *Client) Batch(ctx context.Context, req BatchRequest) ([]batch.Result, error) {
	results, err := batch.Run(ctx, req.Spec, req.Jobs, req.Workers, network.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	if !req.Persist {
		return results, nil
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if req.Spec.ID != "" {
		if err := c.store.SaveNetwork(ctx, req.Spec); err != nil {
			return nil, fmt.Errorf("save network %s: %w", req.Spec.ID, err)
		}
	}
	for i := range results {
		if results[i].Err != nil {
			continue
		}
		results[i].Trace.ID = uuid.NewString()
		if err := c.store.SaveTrace(ctx, results[i].Trace); err != nil {
			return nil, fmt.Errorf("save trace %s: %w", results[i].Trace.ID, err)
		}
	}
	return results, nil
}

// Traces lists stored traces, newest first. Limit <= 0 lists all.
func (c *Client) Traces(ctx context.Context, req TracesRequest) ([]model.TraceSummary, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	summaries, err := c.store.ListTraces(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}
	out := make([]model.TraceSummary, 0, len(summaries))
	for i := len(summaries) - 1; i >= 0; i-- {
		out = append(out, summaries[i])
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

func (c *Client) Trace(ctx context.Context, id string) (model.Trace, error) {
	if err := c.Init(ctx); err != nil {
		return model.Trace{}, err
	}
	trace, ok, err := c.store.GetTrace(ctx, id)
	if err != nil {
		return model.Trace{}, err
	}
	if !ok {
		return model.Trace{}, fmt.Errorf("%w: trace %s", ErrNotFound, id)
	}
	return trace, nil
}

func (c *Client) DeleteTrace(ctx context.Context, id string) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.store.DeleteTrace(ctx, id)
}

// Export writes a stored trace as an Arrow IPC stream.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.TraceID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either trace id or latest")
	}
	if req.TraceID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires trace id or latest")
	}
	if req.Writer == nil {
		return ExportSummary{}, errors.New("export requires a writer")
	}

	traceID := req.TraceID
	if req.Latest {
		latest, err := c.Traces(ctx, TracesRequest{Limit: 1})
		if err != nil {
			return ExportSummary{}, err
		}
		if len(latest) == 0 {
			return ExportSummary{}, errors.New("no traces available to export")
		}
		traceID = latest[0].ID
	}

	trace, err := c.Trace(ctx, traceID)
	if err != nil {
		return ExportSummary{}, err
	}
	if err := export.WriteTraceIPC(req.Writer, trace); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{TraceID: traceID, Rows: len(trace.Steps)}, nil
}
