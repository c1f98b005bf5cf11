package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"crisim/internal/model"
	"crisim/internal/network"
	"crisim/internal/parity"

	"github.com/sourcegraph/conc/pool"
)

// Job is one independent run. A nil Seed keeps the payload seed.
type Job struct {
	Label    string
	Seed     *int64
	Stimulus model.Stimulus
}

// Result is the outcome of one job. Err holds build and step failures; they do
// not stop the other jobs.
type Result struct {
	Index int
	Label string
	Trace model.Trace
	Err   error
}

// Run executes jobs on at most workers goroutines (NumCPU when workers < 1)
// and returns one result per job in job order. The returned error is non-nil
// only when ctx ends before every job finished.
func Run(ctx context.Context, spec model.NetworkSpec, jobs []Job, workers int, opts ...network.Option) ([]Result, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	p := pool.NewWithResults[Result]().WithContext(ctx).WithMaxGoroutines(workers)
	for i, job := range jobs {
		p.Go(func(ctx context.Context) (Result, error) {
			res := Result{Index: i, Label: job.Label}
			res.Trace, res.Err = runJob(ctx, spec, job, opts)
			if err := ctx.Err(); err != nil {
				return res, err
			}
			return res, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	return results, nil
}

func runJob(ctx context.Context, spec model.NetworkSpec, job Job, opts []network.Option) (model.Trace, error) {
	jobOpts := append([]network.Option(nil), opts...)
	if job.Seed != nil {
		jobOpts = append(jobOpts, network.WithSeed(*job.Seed))
	}
	net, err := network.Build(spec, jobOpts...)
	if err != nil {
		return model.Trace{}, err
	}
	trace, err := parity.ReplayContext(ctx, net, job.Stimulus)
	if err != nil {
		return model.Trace{}, fmt.Errorf("job %q: %w", job.Label, err)
	}
	return trace, nil
}
