package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/repository"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/services/extraction"
)

type fakeProcessor struct {
	inFlight, peak atomic.Int32
	stored         atomic.Int32
	delay          func(ref string) time.Duration
}

func (f *fakeProcessor) track() func() {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeProcessor) Extract(ctx context.Context, req pipeline.ExtractionRequest) (pipeline.Result, error) {
	defer f.track()()
	if f.delay != nil {
		select {
		case <-time.After(f.delay(req.SourceRef)):
		case <-ctx.Done():
			return pipeline.Result{}, ctx.Err()
		}
	}
	if req.SourceRef == "bad" {
		return pipeline.Result{}, common.NewStageError(common.StageIngest, common.ErrFetchFailure, errors.New("404"))
	}
	return pipeline.Result{Domain: req.Domain, Record: &entity.FaceAnalysis{Rating: 7}}, nil
}

func (f *fakeProcessor) ExtractAndStore(ctx context.Context, req pipeline.ExtractionRequest, _ string) (extraction.Outcome, error) {
	res, err := f.Extract(ctx, req)
	if err != nil {
		return extraction.Outcome{Result: res}, err
	}
	f.stored.Add(1)
	return extraction.Outcome{JobID: "job", Result: res, Stored: &repository.StoredRecord{Table: "metrics"}}, nil
}

func reqs(refs ...string) []Request {
	out := make([]Request, len(refs))
	for i, r := range refs {
		out[i] = Request{ExtractionRequest: pipeline.ExtractionRequest{Domain: constants.DomainFace, SourceRef: r}}
	}
	return out
}

func TestBatchRunner_OrderAndIsolation(t *testing.T) {
	proc := &fakeProcessor{delay: func(ref string) time.Duration {
		if ref == "slow" {
			return 30 * time.Millisecond
		}
		return time.Millisecond
	}}
	runner := NewBatchRunner(proc, nil, WithWorkers(3))

	results := runner.Run(context.Background(), reqs("slow", "bad", "a", "b", "c"))
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, "slow", results[0].Request.SourceRef)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, common.ErrFetchFailure)
	for _, r := range results[2:] {
		assert.NoError(t, r.Err, "one failure must not cancel the rest")
		assert.NotNil(t, r.Outcome.Result.Record)
	}
	assert.LessOrEqual(t, proc.peak.Load(), int32(3))
}

func TestBatchRunner_Persist(t *testing.T) {
	proc := &fakeProcessor{}
	batch := reqs("a", "b")
	batch[1].Persist = true
	batch[1].OwnerID = "u1"

	results := NewBatchRunner(proc, nil).Run(context.Background(), batch)
	assert.Nil(t, results[0].Outcome.Stored)
	require.NotNil(t, results[1].Outcome.Stored)
	assert.Equal(t, int32(1), proc.stored.Load())
}

func TestBatchRunner_PerRequestTimeout(t *testing.T) {
	proc := &fakeProcessor{delay: func(ref string) time.Duration {
		if ref == "stuck" {
			return time.Minute
		}
		return 0
	}}
	runner := NewBatchRunner(proc, nil, WithProcessTimeout(20*time.Millisecond))

	results := runner.Run(context.Background(), reqs("stuck", "a"))
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.NoError(t, results[1].Err)
}

func TestBatchRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewBatchRunner(&fakeProcessor{}, nil).Run(ctx, reqs("a", "b"))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
