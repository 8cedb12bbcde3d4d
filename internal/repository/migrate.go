package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

const (
	tableDocuments    = "documents"
	tableTransactions = "transactions"
	tableMetrics      = "metrics"
	tableContacts     = "contacts"
	tableOTPs         = "auth_otps"
	tableExtractJobs  = "extract_jobs"
)

// Column fragments shared by both dialects. SQLite accepts the Postgres
// type names through its affinity rules.
const (
	colID      = "id TEXT PRIMARY KEY"
	colText    = "%s TEXT NOT NULL DEFAULT ''"
	colNullStr = "%s TEXT"
	colBigint  = "%s BIGINT NOT NULL"
	colNumeric = "%s %s NOT NULL DEFAULT 0"
	colBool    = "%s BOOLEAN NOT NULL DEFAULT FALSE"
)

type tableDef struct {
	name    string
	columns []string
}

func texts(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf(colText, n)
	}
	return out
}

func (d *DB) floatType() string {
	if d.Dialect == dialect.Postgres {
		return "DOUBLE PRECISION"
	}
	return "REAL"
}

func (d *DB) tables() []tableDef {
	num := func(name string) string { return fmt.Sprintf(colNumeric, name, d.floatType()) }
	big := func(name string) string { return fmt.Sprintf(colBigint, name) }
	boolean := func(name string) string { return fmt.Sprintf(colBool, name) }
	cols := func(parts ...[]string) []string {
		out := []string{colID}
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}
	return []tableDef{
		{tableDocuments, cols(
			texts("owner_id", "domain", "name", "type", "url", "summary", "analysis_data", "agent_access", "job_id"),
			[]string{big("created_at")},
		)},
		{tableTransactions, cols(
			texts("owner_id", "description"),
			[]string{num("amount")},
			texts("type", "category", "tx_date", "receipt_url", "job_id"),
			[]string{big("created_at")},
		)},
		{tableMetrics, cols(
			texts("owner_id", "category", "name"),
			[]string{num("value")},
			texts("unit", "evidence_url", "notes", "job_id"),
			[]string{big("created_at")},
		)},
		{tableContacts, cols(
			texts("owner_id", "name", "status"),
			[]string{"score INTEGER NOT NULL DEFAULT 0"},
			texts("notes"),
			[]string{big("last_msg")},
			texts("photo_url", "job_id"),
			[]string{big("created_at")},
		)},
		{tableOTPs, cols(
			texts("email", "code", "purpose"),
			[]string{big("expires_at"), boolean("used"), big("created_at")},
		)},
		{tableExtractJobs, cols(
			texts("domain", "source_ref", "raw_kind", "owner_id", "status"),
			[]string{boolean("fell_back")},
			[]string{
				fmt.Sprintf(colNullStr, "error_stage"),
				fmt.Sprintf(colNullStr, "error_message"),
				fmt.Sprintf(colNullStr, "raw_text"),
				fmt.Sprintf(colNullStr, "record_json"),
				fmt.Sprintf(colNullStr, "record_id"),
			},
			texts("model"),
			[]string{big("started_at"), "finished_at BIGINT"},
		)},
	}
}

var indexes = []struct {
	name, table string
	columns     []string
}{
	{"idx_transactions_owner_date", tableTransactions, []string{"owner_id", "tx_date"}},
	{"idx_contacts_owner", tableContacts, []string{"owner_id"}},
	{"idx_auth_otps_email", tableOTPs, []string{"email", "purpose"}},
	{"idx_extract_jobs_started", tableExtractJobs, []string{"started_at"}},
}

// schemaStatements returns the DDL in execution order.
func (d *DB) schemaStatements() []string {
	var stmts []string
	for _, t := range d.tables() {
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.name, strings.Join(t.columns, ", ")))
	}
	for _, ix := range indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", ix.name, ix.table, strings.Join(ix.columns, ", ")))
	}
	return stmts
}

// Migrate creates every table and index that does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	d.log.Info("migrating schema", "dialect", d.Dialect)
	for _, q := range d.schemaStatements() {
		if _, err := d.SQL.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %s: %w", q, err)
		}
	}
	d.log.Info("schema migrated")
	return nil
}
