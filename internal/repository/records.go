package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
)

// StoredRecord identifies the row a record was written to.
type StoredRecord struct {
	Table string    `json:"table"`
	ID    uuid.UUID `json:"id"`
}

// TransactionFilter narrows ListTransactions. Zero values are ignored.
type TransactionFilter struct {
	OwnerID string
	From    time.Time
	To      time.Time
}

type RecordRepository interface {
	Save(ctx context.Context, rec entity.Record, prov entity.Provenance) (StoredRecord, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*entity.Transaction, error)
	ListContacts(ctx context.Context, ownerID string) ([]*entity.Contact, error)
	ListMetrics(ctx context.Context, ownerID, category string) ([]*entity.Metric, error)
	ListDocuments(ctx context.Context, ownerID, docType string) ([]*entity.Document, error)
}

type recordRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewRecordRepository(db *DB, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordRepo{db: db, log: logger, now: time.Now}
}

type row struct {
	table string
	cols  []string
	vals  []any
}

func (r *row) set(col string, v any) *row {
	r.cols = append(r.cols, col)
	r.vals = append(r.vals, v)
	return r
}

// toRow maps a record onto the table that owns its domain.
func (r *recordRepo) toRow(rec entity.Record, prov entity.Provenance, id uuid.UUID) (*row, error) {
	created := toMillis(r.now())
	name := prov.FileName
	if name == "" {
		name = path.Base(prov.SourceRef)
	}

	var out *row
	switch v := rec.(type) {
	case *entity.ResumeAnalysis:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out = (&row{table: tableDocuments}).
			set("domain", string(constants.DomainResume)).
			set("name", name).
			set("type", "resume").
			set("url", prov.SourceRef).
			set("summary", v.Summary).
			set("analysis_data", string(data)).
			set("agent_access", `["careermaxxer"]`)
	case *entity.StudyAnalysis:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out = (&row{table: tableDocuments}).
			set("domain", string(constants.DomainStudyDocument)).
			set("name", name).
			set("type", "study_material").
			set("url", prov.SourceRef).
			set("summary", v.Summary).
			set("analysis_data", string(data)).
			set("agent_access", `["studymaxxer"]`)
	case *entity.ReceiptRecord:
		desc := v.Description
		if desc == "" {
			desc = "Receipt: " + name
		}
		out = (&row{table: tableTransactions}).
			set("description", desc).
			set("amount", v.Amount).
			set("type", v.Type).
			set("category", v.Category).
			set("tx_date", v.Date).
			set("receipt_url", prov.SourceRef)
	case *entity.PhysiqueAnalysis:
		notes, err := json.Marshal(v.FocusAreas)
		if err != nil {
			return nil, err
		}
		out = (&row{table: tableMetrics}).
			set("category", "physique").
			set("name", "body_fat_est").
			set("value", float64(v.EstBodyFat)).
			set("unit", "percent").
			set("evidence_url", prov.SourceRef).
			set("notes", string(notes))
	case *entity.FaceAnalysis:
		notes, err := json.Marshal(v.Suggestions)
		if err != nil {
			return nil, err
		}
		out = (&row{table: tableMetrics}).
			set("category", "face").
			set("name", "aesthetics_rating").
			set("value", v.Rating).
			set("unit", "score").
			set("evidence_url", prov.SourceRef).
			set("notes", string(notes))
	case *entity.ChatAnalysis:
		out = (&row{table: tableContacts}).
			set("name", v.Name).
			set("status", v.Status).
			set("score", v.Score).
			set("notes", v.Notes).
			set("last_msg", toMillis(v.LastMsgTime)).
			set("photo_url", prov.SourceRef)
	default:
		return nil, fmt.Errorf("%w: unsupported record type %T", common.ErrInvalidInput, rec)
	}

	out.set("id", id.String()).
		set("owner_id", prov.OwnerID).
		set("job_id", prov.JobID).
		set("created_at", created)
	return out, nil
}

// Save writes rec as one row inside a transaction.
func (r *recordRepo) Save(ctx context.Context, rec entity.Record, prov entity.Provenance) (StoredRecord, error) {
	if rec == nil {
		return StoredRecord{}, fmt.Errorf("%w: nil record", common.ErrInvalidInput)
	}
	id := uuid.New()
	rw, err := r.toRow(rec, prov, id)
	if err != nil {
		return StoredRecord{}, err
	}

	q, args := entsql.Dialect(r.db.Dialect).
		Insert(rw.table).
		Columns(rw.cols...).
		Values(rw.vals...).
		Query()

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return StoredRecord{}, fmt.Errorf("%w: begin: %w", common.ErrDatabase, err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		_ = tx.Rollback()
		r.log.Error("record insert failed", "table", rw.table, "domain", rec.Domain(), "err", err)
		return StoredRecord{}, fmt.Errorf("%w: insert %s: %w", common.ErrDatabase, rw.table, err)
	}
	if err := tx.Commit(); err != nil {
		return StoredRecord{}, fmt.Errorf("%w: commit: %w", common.ErrDatabase, err)
	}

	r.log.Info("record saved", "table", rw.table, "id", id, "domain", rec.Domain(), "owner_id", prov.OwnerID)
	return StoredRecord{Table: rw.table, ID: id}, nil
}

func (r *recordRepo) query(ctx context.Context, s *entsql.Selector) (*sql.Rows, error) {
	q, args := s.Query()
	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return rows, nil
}

func where(s *entsql.Selector, preds []*entsql.Predicate) *entsql.Selector {
	if len(preds) > 0 {
		s.Where(entsql.And(preds...))
	}
	return s
}

func (r *recordRepo) ListTransactions(ctx context.Context, f TransactionFilter) ([]*entity.Transaction, error) {
	b := entsql.Dialect(r.db.Dialect)
	var preds []*entsql.Predicate
	if f.OwnerID != "" {
		preds = append(preds, entsql.EQ("owner_id", f.OwnerID))
	}
	if !f.From.IsZero() {
		preds = append(preds, entsql.GTE("tx_date", f.From.Format(time.DateOnly)))
	}
	if !f.To.IsZero() {
		preds = append(preds, entsql.LTE("tx_date", f.To.Format(time.DateOnly)))
	}
	s := b.Select("id", "owner_id", "description", "amount", "type", "category", "tx_date", "receipt_url", "created_at").
		From(b.Table(tableTransactions)).
		OrderExpr(entsql.Expr("tx_date DESC, created_at DESC"))

	rows, err := r.query(ctx, where(s, preds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Transaction
	for rows.Next() {
		var (
			t       entity.Transaction
			id, day string
			created int64
		)
		if err := rows.Scan(&id, &t.OwnerID, &t.Description, &t.Amount, &t.Type, &t.Category, &day, &t.ReceiptURL, &created); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %w", common.ErrDatabase, err)
		}
		t.ID, _ = uuid.Parse(id)
		t.Date, _ = time.Parse(time.DateOnly, day)
		t.CreatedAt = fromMillis(created)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *recordRepo) ListContacts(ctx context.Context, ownerID string) ([]*entity.Contact, error) {
	b := entsql.Dialect(r.db.Dialect)
	var preds []*entsql.Predicate
	if ownerID != "" {
		preds = append(preds, entsql.EQ("owner_id", ownerID))
	}
	s := b.Select("id", "owner_id", "name", "status", "score", "notes", "last_msg", "photo_url", "created_at").
		From(b.Table(tableContacts)).
		OrderExpr(entsql.Expr("last_msg DESC"))

	rows, err := r.query(ctx, where(s, preds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Contact
	for rows.Next() {
		var (
			c                entity.Contact
			id               string
			lastMsg, created int64
		)
		if err := rows.Scan(&id, &c.OwnerID, &c.Name, &c.Status, &c.Score, &c.Notes, &lastMsg, &c.PhotoURL, &created); err != nil {
			return nil, fmt.Errorf("%w: scan contact: %w", common.ErrDatabase, err)
		}
		c.ID, _ = uuid.Parse(id)
		c.LastMsg = fromMillis(lastMsg)
		c.CreatedAt = fromMillis(created)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *recordRepo) ListMetrics(ctx context.Context, ownerID, category string) ([]*entity.Metric, error) {
	b := entsql.Dialect(r.db.Dialect)
	var preds []*entsql.Predicate
	if ownerID != "" {
		preds = append(preds, entsql.EQ("owner_id", ownerID))
	}
	if category != "" {
		preds = append(preds, entsql.EQ("category", category))
	}
	s := b.Select("id", "owner_id", "category", "name", "value", "unit", "evidence_url", "notes", "created_at").
		From(b.Table(tableMetrics)).
		OrderExpr(entsql.Expr("created_at DESC"))

	rows, err := r.query(ctx, where(s, preds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Metric
	for rows.Next() {
		var (
			m       entity.Metric
			id      string
			created int64
		)
		if err := rows.Scan(&id, &m.OwnerID, &m.Category, &m.Name, &m.Value, &m.Unit, &m.EvidenceURL, &m.Notes, &created); err != nil {
			return nil, fmt.Errorf("%w: scan metric: %w", common.ErrDatabase, err)
		}
		m.ID, _ = uuid.Parse(id)
		m.CreatedAt = fromMillis(created)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *recordRepo) ListDocuments(ctx context.Context, ownerID, docType string) ([]*entity.Document, error) {
	b := entsql.Dialect(r.db.Dialect)
	var preds []*entsql.Predicate
	if ownerID != "" {
		preds = append(preds, entsql.EQ("owner_id", ownerID))
	}
	if docType != "" {
		preds = append(preds, entsql.EQ("type", docType))
	}
	s := b.Select("id", "owner_id", "name", "type", "url", "summary", "agent_access", "analysis_data", "created_at").
		From(b.Table(tableDocuments)).
		OrderExpr(entsql.Expr("created_at DESC"))

	rows, err := r.query(ctx, where(s, preds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		var (
			doc            entity.Document
			id, access, ad string
			created        int64
		)
		if err := rows.Scan(&id, &doc.OwnerID, &doc.Name, &doc.Type, &doc.URL, &doc.Summary, &access, &ad, &created); err != nil {
			return nil, fmt.Errorf("%w: scan document: %w", common.ErrDatabase, err)
		}
		doc.ID, _ = uuid.Parse(id)
		if access != "" {
			_ = json.Unmarshal([]byte(access), &doc.AgentAccess)
		}
		doc.AnalysisData = []byte(ad)
		doc.CreatedAt = fromMillis(created)
		out = append(out, &doc)
	}
	return out, rows.Err()
}
