// Package extraction is the caller side of the pipeline: it runs one
// extraction and hands the record to storage with its provenance, keeping an
// extract_jobs row for each attempt.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/repository"
)

// ErrPersist marks a storage failure after a successful extraction. The
// extraction result is still returned alongside it.
var ErrPersist = errors.New("persist failed")

// Extractor runs one pipeline invocation.
type Extractor interface {
	Extract(ctx context.Context, req pipeline.ExtractionRequest) (pipeline.Result, error)
}

// Outcome is what the caller gets back from ExtractAndStore.
type Outcome struct {
	JobID  string
	Result pipeline.Result
	Stored *repository.StoredRecord
}

type Service struct {
	logger    *slog.Logger
	extractor Extractor
	records   repository.RecordRepository
	jobs      repository.ExtractJobRepository
}

// NewService wires the pipeline to storage. jobs may be nil to skip job
// bookkeeping.
func NewService(ex Extractor, records repository.RecordRepository, jobs repository.ExtractJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, extractor: ex, records: records, jobs: jobs}
}

// Extract runs the pipeline without touching storage.
func (s *Service) Extract(ctx context.Context, req pipeline.ExtractionRequest) (pipeline.Result, error) {
	return s.extractor.Extract(ctx, req)
}

// ExtractAndStore runs job start, pipeline, save and job finish in that
// order. Job bookkeeping failures are logged and never fail the call. A save failure is returned wrapped in ErrPersist together with the
// extraction result; the extraction is not repeated.
func (s *Service) ExtractAndStore(ctx context.Context, req pipeline.ExtractionRequest, ownerID string) (Outcome, error) {
	if s.records == nil {
		return Outcome{}, common.NewAppError("CONFIG_ERROR", "no record repository configured", common.ErrInvalidInput)
	}
	if ownerID != "" {
		ctx = common.WithOwnerID(ctx, ownerID)
	}
	log := s.logger.With("domain", req.Domain, "owner_id", ownerID)

	var out Outcome
	if s.jobs != nil {
		job, err := s.jobs.Start(ctx, &entity.ExtractJob{
			Domain:    string(req.Domain),
			SourceRef: req.SourceRef,
			RawKind:   string(req.RawKind),
			OwnerID:   ownerID,
		})
		if err != nil {
			log.Warn("extraction.job.start_failed", "error", err)
		} else {
			out.JobID = job.ID
			log = log.With("job_id", job.ID)
		}
	}

	start := time.Now()
	res, err := s.extractor.Extract(ctx, req)
	out.Result = res
	if err != nil {
		log.Error("extraction.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		s.finish(ctx, log, out.JobID, failedOutcome(res, err))
		return out, err
	}

	recordJSON, _ := json.Marshal(res.Record)
	stored, err := s.records.Save(ctx, res.Record, entity.Provenance{
		OwnerID:   ownerID,
		SourceRef: req.SourceRef,
		FileName:  path.Base(req.SourceRef),
		JobID:     out.JobID,
	})
	if err != nil {
		log.Error("extraction.persist.failed", "error", err)
		jo := failedOutcome(res, err)
		jo.ErrorStage = "persist"
		jo.RecordJSON = recordJSON
		s.finish(ctx, log, out.JobID, jo)
		return out, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	out.Stored = &stored

	jo := repository.JobOutcome{
		Status:     constants.JobStatusOK,
		RawText:    res.RawText,
		RecordJSON: recordJSON,
		RecordID:   stored.ID.String(),
		Model:      res.Model,
	}
	if res.FellBack {
		jo.Status = constants.JobStatusFallback
		jo.FellBack = true
		if stage, ok := common.StageOf(res.Cause); ok {
			jo.ErrorStage = string(stage)
		}
		if res.Cause != nil {
			jo.ErrorMessage = res.Cause.Error()
		}
	}
	s.finish(ctx, log, out.JobID, jo)

	log.Info("extraction.stored",
		"table", stored.Table,
		"record_id", stored.ID,
		"fell_back", res.FellBack,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func failedOutcome(res pipeline.Result, err error) repository.JobOutcome {
	jo := repository.JobOutcome{
		Status:       constants.JobStatusFailed,
		ErrorMessage: err.Error(),
		RawText:      res.RawText,
		Model:        res.Model,
	}
	if stage, ok := common.StageOf(err); ok {
		jo.ErrorStage = string(stage)
	}
	return jo
}

// finish records the job outcome. A bookkeeping failure is logged only; it
// must not change what the caller sees.
func (s *Service) finish(ctx context.Context, log *slog.Logger, jobID string, jo repository.JobOutcome) {
	if s.jobs == nil || jobID == "" {
		return
	}
	// the caller's context may already be done; the row should still close
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.jobs.Finish(fctx, jobID, jo); err != nil {
		log.Error("extraction.job.finish_failed", "error", err)
	}
}
