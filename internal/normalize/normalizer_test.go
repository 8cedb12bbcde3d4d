package normalize

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/contracts"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return New(nil, WithClock(func() time.Time { return fixedNow }))
}

func mustContract(t *testing.T, d constants.Domain) contracts.Contract {
	t.Helper()
	reg, err := contracts.DefaultRegistry()
	require.NoError(t, err)
	c, err := reg.Lookup(d)
	require.NoError(t, err)
	return c
}

func TestNormalize_ResumeScoreAlwaysInRange(t *testing.T) {
	c := mustContract(t, constants.DomainResume)
	n := newTestNormalizer()

	for _, score := range []string{`-5`, `0`, `42.6`, `100`, `1000`, `"85/100"`, `"  7 "`} {
		t.Run(score, func(t *testing.T) {
			rec, _, err := n.Normalize(c, `{"skills":["Go"],"summary":"Backend engineer.","score":`+score+`}`)
			require.NoError(t, err)
			r := rec.(*entity.ResumeAnalysis)
			assert.GreaterOrEqual(t, r.Score, 0)
			assert.LessOrEqual(t, r.Score, 100)
		})
	}
}

func TestNormalize_Resume(t *testing.T) {
	c := mustContract(t, constants.DomainResume)
	rec, fields, err := newTestNormalizer().Normalize(c, `{
		"skills": ["Go", "Kubernetes", "go", ""],
		"seniority_level": "Senior engineer",
		"summary": "Builds distributed systems.",
		"employability_score": 150,
		"favourite_colour": "blue"
	}`)
	require.NoError(t, err)

	r := rec.(*entity.ResumeAnalysis)
	assert.Equal(t, []string{"Go", "Kubernetes"}, r.Skills)
	assert.Equal(t, constants.SenioritySenior, r.SeniorityLevel)
	assert.Equal(t, 100, r.Score)
	assert.Equal(t, []string{}, r.MissingSkills)
	assert.NotContains(t, fields, "favourite_colour")
}

func TestNormalize_SeniorityMapping(t *testing.T) {
	c := mustContract(t, constants.DomainResume)
	n := newTestNormalizer()
	tests := map[string]string{
		"Mid-level Developer": constants.SeniorityMid,
		"LEAD":                constants.SeniorityLead,
		"Staff Engineer":      constants.SeniorityLead,
		"entry level":         constants.SeniorityJunior,
		"wizard":              constants.SeniorityMid,
	}
	for raw, want := range tests {
		rec, _, err := n.Normalize(c, `{"skills":[],"summary":"s","score":50,"seniority_level":"`+raw+`"}`)
		require.NoError(t, err, raw)
		assert.Equal(t, want, rec.(*entity.ResumeAnalysis).SeniorityLevel, raw)
	}
}

func TestNormalize_ChatStatus(t *testing.T) {
	c := mustContract(t, constants.DomainChatScreenshot)
	n := newTestNormalizer()
	tests := map[string]constants.ChatStatus{
		"Friendzone material": constants.ChatFriendzone,
		"Talking Stage":       constants.ChatTalkingStage,
		"ROSTER":              constants.ChatRoster,
		"stone cold":          constants.ChatCold,
		"Crush":               constants.ChatCrush,
		"it's complicated":    constants.ChatTalkingStage,
	}
	for raw, want := range tests {
		rec, _, err := n.Normalize(c, `{"status":"`+raw+`","score":70}`)
		require.NoError(t, err, raw)
		assert.Equal(t, string(want), rec.(*entity.ChatAnalysis).Status, raw)
	}
}

func TestNormalize_ChatDefaults(t *testing.T) {
	c := mustContract(t, constants.DomainChatScreenshot)
	rec, _, err := newTestNormalizer().Normalize(c, `{"score": "92", "last_msg_time": "not a time"}`)
	require.NoError(t, err)

	r := rec.(*entity.ChatAnalysis)
	assert.Equal(t, "Unknown", r.Name)
	assert.Equal(t, string(constants.ChatTalkingStage), r.Status)
	assert.Equal(t, 92, r.Score)
	assert.True(t, r.LastMsgTime.Equal(fixedNow))
}

func TestNormalize_Receipt(t *testing.T) {
	c := mustContract(t, constants.DomainReceipt)
	n := newTestNormalizer()

	t.Run("coffee purchase", func(t *testing.T) {
		rec, _, err := n.Normalize(c, `{"description":"Blue Bottle - Latte","amount":-10.50,"date":"2026-10-14","category":"Coffee shop","type":"expense"}`)
		require.NoError(t, err)
		r := rec.(*entity.ReceiptRecord)
		assert.Equal(t, -10.50, r.Amount)
		assert.Equal(t, "2026-10-14", r.Date)
		assert.Equal(t, string(constants.Food), r.Category)
		assert.Equal(t, string(constants.TransactionExpense), r.Type)
	})

	t.Run("expense sign enforced", func(t *testing.T) {
		rec, _, err := n.Normalize(c, `{"description":"Pharmacy","amount":"$1,204.10","type":"Expense","category":"pharmacy"}`)
		require.NoError(t, err)
		r := rec.(*entity.ReceiptRecord)
		assert.Equal(t, -1204.10, r.Amount)
		assert.Equal(t, string(constants.Health), r.Category)
	})

	t.Run("amount separators", func(t *testing.T) {
		cases := []struct {
			amount string
			want   float64
		}{
			{"10,50 €", -10.50},
			{"€ 3,5", -3.5},
			{"1,234.50", -1234.50},
			{"1.234,50", -1234.50},
			{"1,234", -1234},
			{"1.234.567", -1234567},
			{"$12.99", -12.99},
		}
		for _, tc := range cases {
			rec, _, err := n.Normalize(c, fmt.Sprintf(`{"description":"Cafe","amount":%q,"type":"expense"}`, tc.amount))
			require.NoError(t, err, tc.amount)
			assert.InDelta(t, tc.want, rec.(*entity.ReceiptRecord).Amount, 1e-9, tc.amount)
		}
	})

	t.Run("missing type derived from sign", func(t *testing.T) {
		rec, _, err := n.Normalize(c, `{"description":"Refund","amount":25}`)
		require.NoError(t, err)
		r := rec.(*entity.ReceiptRecord)
		assert.Equal(t, string(constants.TransactionIncome), r.Type)
		assert.Equal(t, 25.0, r.Amount)
	})

	t.Run("missing or bad date defaults to today", func(t *testing.T) {
		for _, body := range []string{`{"amount":-3}`, `{"amount":-3,"date":"someday"}`} {
			rec, _, err := n.Normalize(c, body)
			require.NoError(t, err)
			r := rec.(*entity.ReceiptRecord)
			assert.Equal(t, "2026-10-15", r.Date)
			assert.Equal(t, "Receipt", r.Description)
			assert.Equal(t, string(constants.Other), r.Category)
		}
	})

	t.Run("date layouts", func(t *testing.T) {
		rec, _, err := n.Normalize(c, `{"amount":-3,"date":"Oct 3, 2026"}`)
		require.NoError(t, err)
		assert.Equal(t, "2026-10-03", rec.(*entity.ReceiptRecord).Date)
	})

	t.Run("missing amount", func(t *testing.T) {
		_, _, err := n.Normalize(c, `{"description":"Shop","date":"2026-10-14"}`)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrMissingField)
		stage, ok := common.StageOf(err)
		require.True(t, ok)
		assert.Equal(t, common.StageNormalize, stage)
	})

	t.Run("non-numeric amount", func(t *testing.T) {
		_, _, err := n.Normalize(c, `{"amount":"about ten"}`)
		assert.ErrorIs(t, err, common.ErrMalformedResponse)
	})
}

func TestNormalize_PhysiqueAndFace(t *testing.T) {
	n := newTestNormalizer()

	rec, _, err := n.Normalize(mustContract(t, constants.DomainPhysique),
		`{"body_fat":"18.4%","muscle_mass":"Athletic build","focus_areas":"Upper Chest, Rear Delts"}`)
	require.NoError(t, err)
	p := rec.(*entity.PhysiqueAnalysis)
	assert.Equal(t, 18, p.EstBodyFat)
	assert.Equal(t, constants.MuscleHigh, p.MuscleMass)
	assert.Equal(t, []string{"Upper Chest", "Rear Delts"}, p.FocusAreas)

	rec, _, err = n.Normalize(mustContract(t, constants.DomainFace), `{"rating":12,"suggestions":["beard trim"],"notes":"Good symmetry."}`)
	require.NoError(t, err)
	f := rec.(*entity.FaceAnalysis)
	assert.Equal(t, 10.0, f.Rating)
	assert.Equal(t, []string{}, f.Products)
}

func TestNormalize_StudyFlashcards(t *testing.T) {
	c := mustContract(t, constants.DomainStudyDocument)
	rec, _, err := newTestNormalizer().Normalize(c, `{
		"summary": "Cells.",
		"flashcards": [
			{"front":"Q1","back":"A1"},
			{"question":"Q2","answer":"A2"},
			{"front":"Q3"},
			{"front":"Q4","back":"A4"},
			{"front":"Q5","back":"A5"},
			{"front":"Q6","back":"A6"},
			{"front":"Q7","back":"A7"}
		],
		"topics": ["Biology"]
	}`)
	require.NoError(t, err)

	s := rec.(*entity.StudyAnalysis)
	require.Len(t, s.Flashcards, 5)
	assert.Equal(t, entity.Flashcard{Front: "Q2", Back: "A2"}, s.Flashcards[1])
	assert.Equal(t, "Q4", s.Flashcards[2].Front)
}

func TestNormalize_Malformed(t *testing.T) {
	c := mustContract(t, constants.DomainReceipt)
	for _, body := range []string{``, `not json`, `[1,2]`, `{"amount":`} {
		_, _, err := newTestNormalizer().Normalize(c, body)
		require.Error(t, err, body)
		assert.ErrorIs(t, err, common.ErrMalformedResponse, body)
	}
}
