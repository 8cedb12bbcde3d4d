package extraction

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/repository"
)

type stubExtractor struct {
	calls int
	res   pipeline.Result
	err   error
}

func (s *stubExtractor) Extract(_ context.Context, req pipeline.ExtractionRequest) (pipeline.Result, error) {
	s.calls++
	res := s.res
	res.Domain = req.Domain
	return res, s.err
}

type brokenRecords struct {
	repository.RecordRepository
}

func (brokenRecords) Save(context.Context, entity.Record, entity.Provenance) (repository.StoredRecord, error) {
	return repository.StoredRecord{}, common.ErrDatabase
}

type brokenJobs struct {
	repository.ExtractJobRepository
	finishes int
}

func (brokenJobs) Start(context.Context, *entity.ExtractJob) (*entity.ExtractJob, error) {
	return nil, errors.New("extract_jobs: disk I/O error")
}

func (b *brokenJobs) Finish(context.Context, string, repository.JobOutcome) error {
	b.finishes++
	return errors.New("extract_jobs: disk I/O error")
}

func openRepos(t *testing.T) (repository.RecordRepository, repository.ExtractJobRepository) {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "svc.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return repository.NewRecordRepository(db, nil), repository.NewExtractJobRepository(db, nil)
}

var receiptReq = pipeline.ExtractionRequest{
	Domain:    constants.DomainReceipt,
	SourceRef: "https://cdn.example.com/u1/lunch.pdf",
}

func TestExtractAndStore_Success(t *testing.T) {
	records, jobs := openRepos(t)
	ex := &stubExtractor{res: pipeline.Result{
		Record:  &entity.ReceiptRecord{Description: "Lunch", Amount: -12, Date: "2026-10-14", Category: "Food", Type: "expense"},
		RawText: `{"amount": -12}`,
		Model:   "m",
	}}
	svc := NewService(ex, records, jobs, nil)

	out, err := svc.ExtractAndStore(context.Background(), receiptReq, "u1")
	require.NoError(t, err)
	require.NotNil(t, out.Stored)
	assert.Equal(t, "transactions", out.Stored.Table)

	txs, err := records.ListTransactions(context.Background(), repository.TransactionFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Lunch", txs[0].Description)
	assert.Equal(t, receiptReq.SourceRef, txs[0].ReceiptURL)

	job, err := jobs.Get(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, "OK", job.Status)
	require.NotNil(t, job.RecordID)
	assert.Equal(t, out.Stored.ID.String(), *job.RecordID)
	assert.Equal(t, "m", job.Model)
}

func TestExtractAndStore_FallbackRecorded(t *testing.T) {
	records, jobs := openRepos(t)
	cause := common.NewStageError(common.StageInference, common.ErrInferenceUnavailable, errors.New("refused"))
	ex := &stubExtractor{res: pipeline.Result{
		Record:   &entity.PhysiqueAnalysis{EstBodyFat: 20, MuscleMass: "Moderate", FocusAreas: []string{"Core"}},
		FellBack: true,
		Cause:    cause,
	}}
	svc := NewService(ex, records, jobs, nil)

	out, err := svc.ExtractAndStore(context.Background(), pipeline.ExtractionRequest{
		Domain: constants.DomainPhysique, SourceRef: "https://cdn.example.com/p.jpg",
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "metrics", out.Stored.Table)

	job, err := jobs.Get(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, "FALLBACK", job.Status)
	assert.True(t, job.FellBack)
	require.NotNil(t, job.ErrorStage)
	assert.Equal(t, "inference", *job.ErrorStage)
}

func TestExtractAndStore_ExtractionFailure(t *testing.T) {
	records, jobs := openRepos(t)
	failure := common.NewStageError(common.StageRecovery, common.ErrMalformedResponse, errors.New("no object")).WithDomain("receipt")
	ex := &stubExtractor{res: pipeline.Result{RawText: "sorry"}, err: failure}
	svc := NewService(ex, records, jobs, nil)

	out, err := svc.ExtractAndStore(context.Background(), receiptReq, "u1")
	require.ErrorIs(t, err, common.ErrMalformedResponse)
	assert.Nil(t, out.Stored)

	job, err := jobs.Get(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", job.Status)
	require.NotNil(t, job.ErrorStage)
	assert.Equal(t, "recovery", *job.ErrorStage)
	require.NotNil(t, job.RawText)
	assert.Equal(t, "sorry", *job.RawText)

	txs, err := records.ListTransactions(context.Background(), repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestExtractAndStore_PersistFailureKeepsResult(t *testing.T) {
	_, jobs := openRepos(t)
	rec := &entity.ReceiptRecord{Description: "Lunch", Amount: -12, Date: "2026-10-14", Category: "Food", Type: "expense"}
	ex := &stubExtractor{res: pipeline.Result{Record: rec}}
	svc := NewService(ex, brokenRecords{}, jobs, nil)

	out, err := svc.ExtractAndStore(context.Background(), receiptReq, "u1")
	require.ErrorIs(t, err, ErrPersist)
	assert.ErrorIs(t, err, common.ErrDatabase)
	assert.Equal(t, 1, ex.calls, "extraction must not be repeated")
	assert.Same(t, rec, out.Result.Record)

	job, err := jobs.Get(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", job.Status)
	require.NotNil(t, job.ErrorStage)
	assert.Equal(t, "persist", *job.ErrorStage)
	assert.NotEmpty(t, job.RecordJSON)
}

func TestExtractAndStore_NoJobRepository(t *testing.T) {
	records, _ := openRepos(t)
	ex := &stubExtractor{res: pipeline.Result{
		Record: &entity.ChatAnalysis{Name: "Alex", Status: "cold", Score: 10},
	}}
	out, err := NewService(ex, records, nil, nil).ExtractAndStore(context.Background(), pipeline.ExtractionRequest{
		Domain: constants.DomainChatScreenshot, SourceRef: "https://cdn.example.com/c.png",
	}, "")
	require.NoError(t, err)
	assert.Empty(t, out.JobID)
	assert.Equal(t, "contacts", out.Stored.Table)
}

func TestExtractAndStore_NoRecords(t *testing.T) {
	_, err := NewService(&stubExtractor{}, nil, nil, nil).ExtractAndStore(context.Background(), receiptReq, "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestExtractAndStore_JobStartFailureStillExtracts(t *testing.T) {
	records, _ := openRepos(t)
	ex := &stubExtractor{res: pipeline.Result{
		Record: &entity.ReceiptRecord{Description: "Lunch", Amount: -12, Date: "2026-10-14", Category: "Food", Type: "expense"},
	}}
	jobs := &brokenJobs{}
	out, err := NewService(ex, records, jobs, nil).ExtractAndStore(context.Background(), receiptReq, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, ex.calls)
	assert.Empty(t, out.JobID)
	require.NotNil(t, out.Stored)
	assert.Equal(t, "transactions", out.Stored.Table)
	assert.Zero(t, jobs.finishes, "no job row to finish")
}
