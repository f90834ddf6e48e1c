package driver

import (
	"context"
	"fmt"

	"github.com/jonmunkholm/csvtypeinfer/internal/repository"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Job is one dataset a Coordinator fans a BatchedDriver.Run call out to.
type Job struct {
	User        string
	Dataset     string
	ColumnTypes []repository.ColumnDecl
}

// Coordinator runs BatchedDriver.Run over many datasets at once, bounded
// by MaxConcurrent, standing in for the out-of-scope cluster task
// scheduler spec.md §1 names as an external collaborator — this repo's
// worker entrypoint is a single process, so fan-out happens in-process
// via errgroup instead of a distributed queue.
type Coordinator struct {
	Driver       *BatchedDriver
	MaxConcurrent int

	flight singleflight.Group
}

// NewCoordinator returns a Coordinator bounded to maxConcurrent simultaneous
// BatchedDriver.Run calls.
func NewCoordinator(d *BatchedDriver, maxConcurrent int) *Coordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Coordinator{Driver: d, MaxConcurrent: maxConcurrent}
}

// RunAll drives every job to completion (or a non-nil error), at most
// MaxConcurrent at a time. A single job's failure cancels the remaining
// in-flight jobs' context, matching errgroup's fail-fast default — the
// driver's own per-dataset lock still protects partially-written schemas
// from a half-finished run.
func (c *Coordinator) RunAll(ctx context.Context, jobs []Job) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.MaxConcurrent)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return c.runOne(gctx, job)
		})
	}
	return g.Wait()
}

// runOne single-flights concurrent calls for the same (user, dataset) so
// two callers racing to kick off inference for the same dataset in this
// process share one BatchedDriver.Run instead of both reaching for the
// repository's advisory lock — a cheap in-process version of the same
// at-most-one-worker guarantee the Redis lock enforces across processes.
func (c *Coordinator) runOne(ctx context.Context, job Job) error {
	key := fmt.Sprintf("%s/%s", job.User, job.Dataset)
	_, err, _ := c.flight.Do(key, func() (any, error) {
		return nil, c.Driver.Run(ctx, job.User, job.Dataset, job.ColumnTypes)
	})
	return err
}
