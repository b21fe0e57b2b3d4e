package inference

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job is one request for Runner.
type Job struct {
	RequestID string
	InputIDs  []int
	Config    Config
}

// Runner fans a batch of jobs out over an Engine with bounded concurrency.
// A failed job does not cancel its siblings.
type Runner struct {
	Engine      *Engine
	Concurrency int
}

// Run generates every job and returns results in job order. Failed jobs have
// whatever partial result Generate returned (possibly nil); their errors are
// joined into the returned error.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := r.Engine.Generate(ctx, job.RequestID, job.InputIDs, job.Config)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("job %d (%s): %w", i, job.RequestID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}
