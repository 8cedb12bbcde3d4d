package entity

import (
	"encoding/json"
	"time"
)

// ExtractJob records one pipeline invocation.
type ExtractJob struct {
	ID           string          `json:"id"`
	Domain       string          `json:"domain"`
	SourceRef    string          `json:"source_ref"`
	RawKind      string          `json:"raw_kind"`
	OwnerID      string          `json:"owner_id,omitempty"`
	Status       string          `json:"status"`
	FellBack     bool            `json:"fell_back"`
	ErrorStage   *string         `json:"error_stage,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	RawText      *string         `json:"raw_text,omitempty"`
	RecordJSON   json.RawMessage `json:"record_json,omitempty"`
	RecordID     *string         `json:"record_id,omitempty"`
	Model        string          `json:"model,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}
