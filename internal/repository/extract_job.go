package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/oklog/ulid/v2"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
)

// JobOutcome is what Finish records about a completed job.
type JobOutcome struct {
	Status       constants.JobStatus
	FellBack     bool
	ErrorStage   string
	ErrorMessage string
	RawText      string
	RecordJSON   []byte
	RecordID     string
	Model        string
}

type ExtractJobRepository interface {
	Start(ctx context.Context, job *entity.ExtractJob) (*entity.ExtractJob, error)
	Finish(ctx context.Context, jobID string, out JobOutcome) error
	Get(ctx context.Context, jobID string) (*entity.ExtractJob, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, logger *slog.Logger) ExtractJobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractJobRepo{db: db, log: logger}
}

// job ids sort by start time; Make is monotonic within a millisecond
func newJobID() string {
	return ulid.Make().String()
}

func (r *extractJobRepo) Start(ctx context.Context, job *entity.ExtractJob) (*entity.ExtractJob, error) {
	out := *job
	out.ID = newJobID()
	out.Status = string(constants.JobStatusRunning)
	out.StartedAt = time.Now().UTC()

	q, args := entsql.Dialect(r.db.Dialect).
		Insert(tableExtractJobs).
		Columns("id", "domain", "source_ref", "raw_kind", "owner_id", "status", "fell_back", "started_at").
		Values(out.ID, out.Domain, out.SourceRef, out.RawKind, out.OwnerID, out.Status, false, toMillis(out.StartedAt)).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, q, args...); err != nil {
		r.log.Error("extract_job start failed", "domain", job.Domain, "err", err)
		return nil, fmt.Errorf("%w: start job: %w", common.ErrDatabase, err)
	}
	r.log.Info("extract_job started", "job_id", out.ID, "domain", out.Domain)
	return &out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *extractJobRepo) Finish(ctx context.Context, jobID string, out JobOutcome) error {
	var record any
	if len(out.RecordJSON) > 0 {
		record = string(out.RecordJSON)
	}
	q, args := entsql.Dialect(r.db.Dialect).
		Update(tableExtractJobs).
		Set("status", string(out.Status)).
		Set("fell_back", out.FellBack).
		Set("error_stage", nullString(out.ErrorStage)).
		Set("error_message", nullString(out.ErrorMessage)).
		Set("raw_text", nullString(out.RawText)).
		Set("record_json", record).
		Set("record_id", nullString(out.RecordID)).
		Set("model", out.Model).
		Set("finished_at", toMillis(time.Now())).
		Where(entsql.EQ("id", jobID)).
		Query()

	res, err := r.db.SQL.ExecContext(ctx, q, args...)
	if err != nil {
		r.log.Error("extract_job finish failed", "job_id", jobID, "err", err)
		return fmt.Errorf("%w: finish job: %w", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("extract job %s: %w", jobID, common.ErrNotFound)
	}

	if out.Status == constants.JobStatusFailed {
		r.log.Warn("extract_job finished", "job_id", jobID, "status", out.Status, "stage", out.ErrorStage, "error", out.ErrorMessage)
	} else {
		r.log.Info("extract_job finished", "job_id", jobID, "status", out.Status, "fell_back", out.FellBack)
	}
	return nil
}

var jobColumns = []string{
	"id", "domain", "source_ref", "raw_kind", "owner_id", "status", "fell_back",
	"error_stage", "error_message", "raw_text", "record_json", "record_id", "model",
	"started_at", "finished_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*entity.ExtractJob, error) {
	var (
		j                                 entity.ExtractJob
		stage, msg, raw, record, recordID sql.NullString
		started                           int64
		finished                          sql.NullInt64
	)
	if err := s.Scan(&j.ID, &j.Domain, &j.SourceRef, &j.RawKind, &j.OwnerID, &j.Status, &j.FellBack,
		&stage, &msg, &raw, &record, &recordID, &j.Model, &started, &finished); err != nil {
		return nil, err
	}
	if stage.Valid {
		j.ErrorStage = &stage.String
	}
	if msg.Valid {
		j.ErrorMessage = &msg.String
	}
	if raw.Valid {
		j.RawText = &raw.String
	}
	if record.Valid {
		j.RecordJSON = []byte(record.String)
	}
	if recordID.Valid {
		j.RecordID = &recordID.String
	}
	j.StartedAt = fromMillis(started)
	if finished.Valid {
		t := fromMillis(finished.Int64)
		j.FinishedAt = &t
	}
	return &j, nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID string) (*entity.ExtractJob, error) {
	b := entsql.Dialect(r.db.Dialect)
	q, args := b.Select(jobColumns...).
		From(b.Table(tableExtractJobs)).
		Where(entsql.EQ("id", jobID)).
		Query()
	j, err := scanJob(r.db.SQL.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("extract job %s: %w", jobID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %w", common.ErrDatabase, err)
	}
	return j, nil
}

func (r *extractJobRepo) ListRecent(ctx context.Context, limit int) ([]*entity.ExtractJob, error) {
	if limit <= 0 {
		limit = 50
	}
	b := entsql.Dialect(r.db.Dialect)
	q, args := b.Select(jobColumns...).
		From(b.Table(tableExtractJobs)).
		OrderExpr(entsql.Expr("id DESC")).
		Limit(limit).
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.ExtractJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan job: %w", common.ErrDatabase, err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
