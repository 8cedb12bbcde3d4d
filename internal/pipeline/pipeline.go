// Package pipeline runs one extraction end to end: adapt the source, invoke
// the model, recover the JSON object and normalize it against the domain
// contract, applying the domain's fallback policy on failure.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/contracts"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/ingest"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/normalize"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/recovery"
)

// ExtractionRequest is one user action. An empty RawKind selects the
// contract's default.
type ExtractionRequest struct {
	Domain    constants.Domain  `json:"domain" validate:"required"`
	SourceRef string            `json:"sourceRef" validate:"required"`
	RawKind   constants.RawKind `json:"rawKind,omitempty"`
}

// Result is a normalized record, or the domain's fallback record when
// FellBack is set. Cause holds the masked failure in that case.
type Result struct {
	Domain   constants.Domain
	Record   entity.Record
	Fields   map[string]any
	FellBack bool
	Cause    error
	RawText  string
	Content  ingest.Content
	Model    string
	Elapsed  time.Duration
}

// SourceAdapter produces model input for a source reference.
type SourceAdapter interface {
	Adapt(ctx context.Context, sourceRef string, kind constants.RawKind) (ingest.Content, error)
}

// Pipeline holds only immutable collaborators; concurrent Extract calls share
// nothing mutable.
type Pipeline struct {
	Logger     *slog.Logger
	Registry   *contracts.Registry
	Adapter    SourceAdapter
	Invoker    llm.Invoker
	Normalizer *normalize.Normalizer
}

func New(logger *slog.Logger, reg *contracts.Registry, adapter SourceAdapter, invoker llm.Invoker, norm *normalize.Normalizer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if norm == nil {
		norm = normalize.New(logger)
	}
	return &Pipeline{
		Logger:     logger,
		Registry:   reg,
		Adapter:    adapter,
		Invoker:    invoker,
		Normalizer: norm,
	}
}

// Extract runs the stages in order and fails fast. Unknown domains and
// adapter failures are always returned. Inference, recovery and normalize
// failures are masked by the fallback record for tolerant domains unless the
// caller's context is done.
func (p *Pipeline) Extract(ctx context.Context, req ExtractionRequest) (Result, error) {
	start := time.Now()
	if common.RequestIDFromContext(ctx) == "" {
		ctx = common.WithRequestID(ctx, uuid.New().String())
	}
	reqID := common.RequestIDFromContext(ctx)
	log := p.Logger.With("req_id", reqID, "domain", req.Domain)

	c, err := p.Registry.Lookup(req.Domain)
	if err != nil {
		log.Warn("pipeline.extract.unknown_domain")
		return Result{Domain: req.Domain}, err
	}

	kind := req.RawKind
	if kind == "" {
		kind = c.RawKind
	}
	log.Info("pipeline.extract.start", "raw_kind", kind)

	content, err := p.Adapter.Adapt(ctx, req.SourceRef, kind)
	if err != nil {
		log.Error("pipeline.ingest.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{Domain: c.Domain}, withDomain(err, c.Domain)
	}

	res := Result{Domain: c.Domain, Content: content}

	resp, err := p.Invoker.Invoke(ctx, llm.Request{
		Instruction: c.Instruction(),
		Prompt:      c.Prompt,
		Text:        content.Text,
		ImageURL:    content.ImageURL,
		Temperature: c.Temperature,
	})
	res.Model = resp.Model
	if err != nil {
		return p.fail(ctx, log, c, res, start,
			common.NewStageError(common.StageInference, common.ErrInferenceUnavailable, err))
	}
	res.RawText = resp.RawText
	if !resp.Succeeded {
		return p.fail(ctx, log, c, res, start,
			common.NewStageError(common.StageInference, common.ErrInferenceUnavailable, errors.New("no content received from model")))
	}

	recovered := recovery.Recover(resp.RawText)
	if recovered == "" {
		return p.fail(ctx, log, c, res, start,
			common.NewStageError(common.StageRecovery, common.ErrMalformedResponse, errors.New("nothing to recover from model output")))
	}

	rec, fields, err := p.Normalizer.Normalize(c, recovered)
	if err != nil {
		return p.fail(ctx, log, c, res, start, err)
	}

	res.Record = rec
	res.Fields = fields
	res.Elapsed = time.Since(start)
	log.Info("pipeline.extract.ok",
		"model", res.Model,
		"truncated", content.Truncated,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

// fail applies the fallback policy to a failure from the inference stage
// onwards.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, c contracts.Contract, res Result, start time.Time, err error) (Result, error) {
	err = withDomain(err, c.Domain)
	res.Elapsed = time.Since(start)
	stage, _ := common.StageOf(err)

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("pipeline.extract.canceled", "stage", stage, "error", ctxErr, "elapsed_ms", res.Elapsed.Milliseconds())
		return res, fmt.Errorf("%w: %w", ctxErr, err)
	}

	fallback, ok := c.Fallback()
	if !ok {
		log.Error("pipeline.extract.failed", "stage", stage, "error", err, "elapsed_ms", res.Elapsed.Milliseconds())
		return res, err
	}

	fields, ferr := recordFields(fallback)
	if ferr != nil {
		log.Error("pipeline.fallback.encode_failed", "error", ferr)
		return res, err
	}
	log.Warn("pipeline.extract.fallback", "stage", stage, "cause", err, "elapsed_ms", res.Elapsed.Milliseconds())
	res.Record = fallback
	res.Fields = fields
	res.FellBack = true
	res.Cause = err
	return res, nil
}

func withDomain(err error, d constants.Domain) error {
	var se *common.StageError
	if errors.As(err, &se) && se.Domain == "" {
		return se.WithDomain(string(d))
	}
	return err
}

func recordFields(rec entity.Record) (map[string]any, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
