// Package async runs independent extractions concurrently.
package async

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/services/extraction"
)

// Processor is the slice of extraction.Service the runner needs.
type Processor interface {
	Extract(ctx context.Context, req pipeline.ExtractionRequest) (pipeline.Result, error)
	ExtractAndStore(ctx context.Context, req pipeline.ExtractionRequest, ownerID string) (extraction.Outcome, error)
}

// Request is one line of a batch file.
type Request struct {
	pipeline.ExtractionRequest
	OwnerID string `json:"ownerId,omitempty"`
	Persist bool   `json:"persist,omitempty"`
}

// Result pairs a request with its outcome. Results keep the request order.
type Result struct {
	Index   int
	Request Request
	Outcome extraction.Outcome
	Err     error
	Elapsed time.Duration
}

type BatchRunner struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
}

type Option func(*BatchRunner)

func WithWorkers(n int) Option {
	return func(r *BatchRunner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(r *BatchRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewBatchRunner(proc Processor, logger *slog.Logger, opts ...Option) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &BatchRunner{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run processes every request with at most workers in flight. A failed
// request is reported in its Result and does not stop the others; only ctx
// cancellation does.
func (r *BatchRunner) Run(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(r.workers)

	start := time.Now()
	for i, req := range reqs {
		results[i] = Result{Index: i, Request: req}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			results[i] = r.runOne(ctx, i, req)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.logger.Info("batch.done",
		"total", len(reqs),
		"failed", failed,
		"workers", r.workers,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results
}

func (r *BatchRunner) runOne(ctx context.Context, i int, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	res := Result{Index: i, Request: req}
	if req.Persist {
		res.Outcome, res.Err = r.proc.ExtractAndStore(ctx, req.ExtractionRequest, req.OwnerID)
	} else {
		res.Outcome.Result, res.Err = r.proc.Extract(ctx, req.ExtractionRequest)
	}
	res.Elapsed = time.Since(start)

	if res.Err != nil {
		r.logger.Error("batch.item.failed", "index", i, "domain", req.Domain, "source", req.SourceRef, "error", res.Err)
	} else {
		r.logger.Info("batch.item.ok", "index", i, "domain", req.Domain,
			"fell_back", res.Outcome.Result.FellBack, "elapsed_ms", res.Elapsed.Milliseconds())
	}
	return res
}
