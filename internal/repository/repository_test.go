package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"}, nil)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestMigrate_CreatesTablesAndIndexes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, table := range []string{tableDocuments, tableTransactions, tableMetrics, tableContacts, tableOTPs, tableExtractJobs} {
		var name string
		err := db.SQL.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
	for _, ix := range indexes {
		var n int
		err := db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, ix.name).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, ix.name)
	}

	// Column defaults let a bare insert succeed.
	_, err := db.SQL.ExecContext(ctx, `INSERT INTO auth_otps (id, expires_at, created_at) VALUES ('x', 1, 1)`)
	require.NoError(t, err)
	var used bool
	require.NoError(t, db.SQL.QueryRowContext(ctx, `SELECT used FROM auth_otps WHERE id = 'x'`).Scan(&used))
	assert.False(t, used)
}

func TestSchemaStatements_Postgres(t *testing.T) {
	db := &DB{Dialect: dialect.Postgres}
	stmts := db.schemaStatements()
	require.Len(t, stmts, 6+len(indexes))
	assert.Contains(t, stmts[1], "amount DOUBLE PRECISION NOT NULL DEFAULT 0")
	for _, s := range stmts {
		assert.Contains(t, s, "IF NOT EXISTS")
	}
}

func TestRecordRepository_SaveAndList(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRecordRepository(db, nil)

	prov := entity.Provenance{OwnerID: "user-1", SourceRef: "https://cdn.example.com/u/receipt.pdf", JobID: "job-1"}

	stored, err := repo.Save(ctx, &entity.ReceiptRecord{
		Description: "Corner Cafe", Amount: -10.5, Date: "2026-10-14", Category: "Food", Type: "expense",
	}, prov)
	require.NoError(t, err)
	assert.Equal(t, "transactions", stored.Table)
	assert.NotEqual(t, uuid.Nil, stored.ID)

	_, err = repo.Save(ctx, &entity.ReceiptRecord{Amount: 2000, Date: "2026-09-01", Category: "Other", Type: "income"}, prov)
	require.NoError(t, err)
	_, err = repo.Save(ctx, &entity.ReceiptRecord{Description: "Other user", Amount: -1, Date: "2026-10-01", Category: "Other", Type: "expense"},
		entity.Provenance{OwnerID: "user-2", SourceRef: "x"})
	require.NoError(t, err)

	all, err := repo.ListTransactions(ctx, TransactionFilter{OwnerID: "user-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Corner Cafe", all[0].Description, "newest date first")
	assert.Equal(t, -10.5, all[0].Amount)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), all[0].Date)
	assert.Equal(t, prov.SourceRef, all[0].ReceiptURL)
	assert.Equal(t, "Receipt: receipt.pdf", all[1].Description)

	october, err := repo.ListTransactions(ctx, TransactionFilter{
		OwnerID: "user-1",
		From:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, october, 1)

	everyone, err := repo.ListTransactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, everyone, 3)
}

func TestRecordRepository_DomainTables(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRecordRepository(db, nil)
	prov := entity.Provenance{OwnerID: "u", SourceRef: "https://cdn.example.com/a.jpg"}

	last := time.Date(2026, 10, 14, 21, 5, 0, 0, time.UTC)
	tests := []struct {
		rec   entity.Record
		table string
	}{
		{&entity.ResumeAnalysis{Skills: []string{"Go"}, SeniorityLevel: "Senior", MissingSkills: []string{}, Summary: "solid", Score: 80}, "documents"},
		{&entity.StudyAnalysis{Summary: "cells", Flashcards: []entity.Flashcard{{Front: "q", Back: "a"}}, Topics: []string{"bio"}}, "documents"},
		{&entity.PhysiqueAnalysis{EstBodyFat: 18, MuscleMass: "High", FocusAreas: []string{"legs"}}, "metrics"},
		{&entity.FaceAnalysis{Rating: 7.5, Suggestions: []string{"moisturize"}, Products: []string{}}, "metrics"},
		{&entity.ChatAnalysis{Name: "Sam", Status: "crush", Score: 70, LastMsgTime: last}, "contacts"},
	}
	for _, tt := range tests {
		t.Run(string(tt.rec.Domain()), func(t *testing.T) {
			stored, err := repo.Save(ctx, tt.rec, prov)
			require.NoError(t, err)
			assert.Equal(t, tt.table, stored.Table)
		})
	}

	docs, err := repo.ListDocuments(ctx, "u", "resume")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"careermaxxer"}, docs[0].AgentAccess)
	assert.Equal(t, "a.jpg", docs[0].Name)
	var resume entity.ResumeAnalysis
	require.NoError(t, json.Unmarshal(docs[0].AnalysisData, &resume))
	assert.Equal(t, 80, resume.Score)

	study, err := repo.ListDocuments(ctx, "u", "study_material")
	require.NoError(t, err)
	require.Len(t, study, 1)
	assert.Equal(t, []string{"studymaxxer"}, study[0].AgentAccess)

	physique, err := repo.ListMetrics(ctx, "u", "physique")
	require.NoError(t, err)
	require.Len(t, physique, 1)
	assert.Equal(t, "body_fat_est", physique[0].Name)
	assert.Equal(t, 18.0, physique[0].Value)
	assert.Equal(t, "percent", physique[0].Unit)
	assert.JSONEq(t, `["legs"]`, physique[0].Notes)

	face, err := repo.ListMetrics(ctx, "u", "face")
	require.NoError(t, err)
	require.Len(t, face, 1)
	assert.Equal(t, "aesthetics_rating", face[0].Name)
	assert.Equal(t, "score", face[0].Unit)

	contacts, err := repo.ListContacts(ctx, "u")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Sam", contacts[0].Name)
	assert.Equal(t, string(constants.ChatCrush), contacts[0].Status)
	assert.True(t, last.Equal(contacts[0].LastMsg))
	assert.Equal(t, prov.SourceRef, contacts[0].PhotoURL)
}

func TestRecordRepository_SaveNil(t *testing.T) {
	repo := NewRecordRepository(openTestDB(t), nil)
	_, err := repo.Save(context.Background(), nil, entity.Provenance{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestExtractJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(openTestDB(t), nil)

	job, err := repo.Start(ctx, &entity.ExtractJob{Domain: "receipt", SourceRef: "s3://r.pdf", RawKind: "text-document", OwnerID: "u"})
	require.NoError(t, err)
	assert.Len(t, job.ID, 26)
	assert.Equal(t, string(constants.JobStatusRunning), job.Status)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.ErrorStage)

	require.NoError(t, repo.Finish(ctx, job.ID, JobOutcome{
		Status:     constants.JobStatusOK,
		RawText:    `{"amount": 1}`,
		RecordJSON: []byte(`{"amount":1}`),
		RecordID:   "abc",
		Model:      "test-model",
	}))

	got, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "OK", got.Status)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.RecordID)
	assert.Equal(t, "abc", *got.RecordID)
	assert.JSONEq(t, `{"amount":1}`, string(got.RecordJSON))
	assert.Equal(t, "test-model", got.Model)
	assert.Nil(t, got.ErrorMessage)

	failed, err := repo.Start(ctx, &entity.ExtractJob{Domain: "face", SourceRef: "x", RawKind: "image"})
	require.NoError(t, err)
	require.NoError(t, repo.Finish(ctx, failed.ID, JobOutcome{
		Status: constants.JobStatusFailed, ErrorStage: "inference", ErrorMessage: "boom",
	}))

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, failed.ID, recent[0].ID)
	require.NotNil(t, recent[0].ErrorStage)
	assert.Equal(t, "inference", *recent[0].ErrorStage)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Finish(ctx, "missing", JobOutcome{Status: constants.JobStatusOK}), common.ErrNotFound)
}

func TestOTPRepository_SingleUse(t *testing.T) {
	ctx := context.Background()
	repo := NewOTPRepository(openTestDB(t), nil)
	now := time.Now().UTC()

	older := &entity.OTP{Email: "a@b.co", Code: "111111", Purpose: "signup", ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now.Add(-time.Minute)}
	newer := &entity.OTP{Email: "a@b.co", Code: "111111", Purpose: "signup", ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now}
	expired := &entity.OTP{Email: "a@b.co", Code: "222222", Purpose: "signup", ExpiresAt: now.Add(-time.Second)}
	for _, o := range []*entity.OTP{older, newer, expired} {
		require.NoError(t, repo.Insert(ctx, o))
	}

	found, err := repo.FindActive(ctx, "a@b.co", "111111", "signup", now)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, found.ID)

	_, err = repo.FindActive(ctx, "a@b.co", "111111", "reset", now)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = repo.FindActive(ctx, "a@b.co", "222222", "signup", now)
	assert.ErrorIs(t, err, common.ErrNotFound)

	ok, err := repo.MarkUsed(ctx, found.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkUsed(ctx, found.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second consumption must lose")

	next, err := repo.FindActive(ctx, "a@b.co", "111111", "signup", now)
	require.NoError(t, err)
	assert.Equal(t, older.ID, next.ID)
}
