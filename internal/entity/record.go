package entity

import (
	"time"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
)

// Record is a normalized extraction result for one domain.
type Record interface {
	Domain() constants.Domain
}

// ResumeAnalysis is the career review of a resume.
type ResumeAnalysis struct {
	Skills         []string `json:"skills" validate:"required"`
	SeniorityLevel string   `json:"seniority_level" validate:"oneof=Junior Mid-Level Senior Lead"`
	MissingSkills  []string `json:"missing_skills" validate:"required"`
	Summary        string   `json:"summary" validate:"required"`
	Score          int      `json:"score" validate:"gte=0,lte=100"`
}

func (*ResumeAnalysis) Domain() constants.Domain { return constants.DomainResume }

// ReceiptRecord is one transaction read off a receipt. Amount is negative for
// expenses.
type ReceiptRecord struct {
	Description string  `json:"description" validate:"required"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Category    string  `json:"category" validate:"oneof=Food Transport Utilities Entertainment Shopping Health Other"`
	Type        string  `json:"type" validate:"oneof=expense income"`
}

func (*ReceiptRecord) Domain() constants.Domain { return constants.DomainReceipt }

// TxDate parses Date; the zero time is returned if it does not parse.
func (r *ReceiptRecord) TxDate() time.Time {
	t, _ := time.Parse(time.DateOnly, r.Date)
	return t
}

// PhysiqueAnalysis is a fitness estimate from a body photo.
type PhysiqueAnalysis struct {
	EstBodyFat int      `json:"est_body_fat" validate:"gte=0,lte=100"`
	MuscleMass string   `json:"muscle_mass" validate:"oneof=Low Moderate High Unknown"`
	FocusAreas []string `json:"focus_areas" validate:"required"`
	Notes      string   `json:"notes"`
}

func (*PhysiqueAnalysis) Domain() constants.Domain { return constants.DomainPhysique }

// FaceAnalysis is grooming and style advice from a face photo.
type FaceAnalysis struct {
	Rating      float64  `json:"rating" validate:"gte=0,lte=10"`
	Suggestions []string `json:"suggestions" validate:"required"`
	Products    []string `json:"products" validate:"required"`
	Notes       string   `json:"notes"`
}

func (*FaceAnalysis) Domain() constants.Domain { return constants.DomainFace }

// ChatAnalysis describes the contact shown in a chat screenshot.
type ChatAnalysis struct {
	Name        string    `json:"name" validate:"required"`
	Status      string    `json:"status" validate:"oneof=talking-stage friendzone crush roster cold"`
	Score       int       `json:"score" validate:"gte=0,lte=100"`
	Notes       string    `json:"notes"`
	LastMsgTime time.Time `json:"last_msg_time" validate:"required"`
}

func (*ChatAnalysis) Domain() constants.Domain { return constants.DomainChatScreenshot }

// Flashcard is one question/answer pair.
type Flashcard struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

// StudyAnalysis summarizes a study document.
type StudyAnalysis struct {
	Summary    string      `json:"summary" validate:"required"`
	Flashcards []Flashcard `json:"flashcards" validate:"required,max=5,dive"`
	Topics     []string    `json:"topics" validate:"required"`
}

func (*StudyAnalysis) Domain() constants.Domain { return constants.DomainStudyDocument }

// NewRecord returns an empty record for d, ready to be decoded into.
func NewRecord(d constants.Domain) (Record, bool) {
	switch d {
	case constants.DomainResume:
		return &ResumeAnalysis{}, true
	case constants.DomainReceipt:
		return &ReceiptRecord{}, true
	case constants.DomainPhysique:
		return &PhysiqueAnalysis{}, true
	case constants.DomainFace:
		return &FaceAnalysis{}, true
	case constants.DomainChatScreenshot:
		return &ChatAnalysis{}, true
	case constants.DomainStudyDocument:
		return &StudyAnalysis{}, true
	default:
		return nil, false
	}
}
