package entity

import (
	"time"

	"github.com/google/uuid"
)

// Provenance identifies where a record came from and who owns it.
type Provenance struct {
	OwnerID   string `json:"owner_id,omitempty"`
	SourceRef string `json:"source_ref"`
	FileName  string `json:"file_name,omitempty"`
	JobID     string `json:"job_id,omitempty"`
}

// Transaction is a stored receipt row.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	ReceiptURL  string    `json:"receipt_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Contact is a stored chat-analysis row.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Score     int       `json:"score"`
	Notes     string    `json:"notes"`
	LastMsg   time.Time `json:"last_msg"`
	PhotoURL  string    `json:"photo_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is a stored resume or study-material row.
type Document struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	URL          string    `json:"url"`
	Summary      string    `json:"summary"`
	AgentAccess  []string  `json:"agent_access"`
	AnalysisData []byte    `json:"analysis_data,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Metric is a stored physique or face measurement.
type Metric struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	EvidenceURL string    `json:"evidence_url"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// OTP is a one-time code row.
type OTP struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}
