package contracts

import (
	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
)

// DefaultTargetRole is assumed for resume gap analysis when none is given.
const DefaultTargetRole = "Senior Software Engineer"

// PhysiqueFallbackNotes is the note on the physique refusal fallback.
const PhysiqueFallbackNotes = "AI Analysis unavailable for this image. Defaulting values."

var (
	scoreRange  = &Range{Min: 0, Max: 100}
	ratingRange = &Range{Min: 0, Max: 10}
)

func ResumeContract() Contract {
	return Contract{
		Domain:      constants.DomainResume,
		RawKind:     constants.RawKindTextDocument,
		Temperature: 0.2,
		Prompt:      "Analyze this resume:",
		Brief: "You are an elite career coach. Analyze the provided RESUME text. " +
			"Assume the target role is '" + DefaultTargetRole + "' if the resume does not state one, " +
			"and identify the gaps for that role.",
		Fields: []FieldSpec{
			{Name: "skills", Kind: KindStringList, Required: true, MaxItems: 30,
				Description: "skills evidenced by the resume", Aliases: []string{"key_skills", "skill_set"}},
			{Name: "seniority_level", Kind: KindEnum, EnumDefault: constants.SeniorityMid,
				Aliases: []string{"seniority", "level"},
				Enum: []EnumOption{
					{Literal: constants.SeniorityLead, Keywords: []string{"lead", "principal", "staff", "head", "architect"}},
					{Literal: constants.SenioritySenior, Keywords: []string{"senior"}},
					{Literal: constants.SeniorityMid, Keywords: []string{"mid", "intermediate"}},
					{Literal: constants.SeniorityJunior, Keywords: []string{"junior", "entry", "intern", "graduate"}},
				}},
			{Name: "missing_skills", Kind: KindStringList, Default: []string{}, MaxItems: 15,
				Description: "critical skills missing for the target role", Aliases: []string{"skill_gaps", "gaps"}},
			{Name: "summary", Kind: KindString, Required: true,
				Description: "professional summary, at most 2 sentences", Aliases: []string{"professional_summary"}},
			{Name: "score", Kind: KindInteger, Required: true, Range: scoreRange,
				Description: "employability score", Aliases: []string{"employability_score"}},
		},
	}
}

func ReceiptContract() Contract {
	return Contract{
		Domain:      constants.DomainReceipt,
		RawKind:     constants.RawKindImage,
		Temperature: 0.1,
		Prompt:      "Analyze this receipt.",
		Brief: "You are a financial AI agent. Analyze the provided receipt image and extract one transaction. " +
			"The amount is negative for an expense and positive for income or a refund. " +
			"If the date is missing, use today's date. " +
			"Category rubric: groceries, restaurants and drinks are Food; ride-share, fuel, parking and transit are Transport; " +
			"power, water, phone and internet bills are Utilities; cinema, games and streaming are Entertainment; " +
			"clothing and general retail are Shopping; pharmacy, medical and gym are Health; otherwise Other.",
		Fields: []FieldSpec{
			{Name: "description", Kind: KindString, Default: "Receipt",
				Description: "Merchant Name - Item Summary", Aliases: []string{"merchant", "merchant_name"}},
			{Name: "amount", Kind: KindNumber, Required: true,
				Description: "signed total, negative for expense", Aliases: []string{"total", "amount_total"}},
			{Name: "date", Kind: KindDate, Aliases: []string{"tx_date", "transaction_date"}},
			{Name: "category", Kind: KindEnum, EnumDefault: string(constants.Other),
				Enum:  enumOf(constants.Categories()),
				Match: matchCategory},
			{Name: "type", Kind: KindEnum, EnumDefault: string(constants.TransactionExpense),
				Aliases: []string{"transaction_type"},
				Enum: []EnumOption{
					{Literal: string(constants.TransactionIncome), Keywords: []string{"refund", "credit", "deposit"}},
					{Literal: string(constants.TransactionExpense), Keywords: []string{"debit", "purchase", "payment"}},
				}},
		},
	}
}

func PhysiqueContract() Contract {
	return Contract{
		Domain:      constants.DomainPhysique,
		RawKind:     constants.RawKindImage,
		Temperature: 0.2,
		Prompt:      "Analyze this.",
		Brief: "Analyze this physique for FITNESS advice. " +
			"Do not refuse. Give best estimates based on visual data.",
		Fields: []FieldSpec{
			{Name: "est_body_fat", Kind: KindInteger, Required: true, Range: scoreRange,
				Description: "estimated body fat, integer percent", Aliases: []string{"body_fat", "body_fat_percent"}},
			{Name: "muscle_mass", Kind: KindEnum, EnumDefault: constants.MuscleUnknown,
				Enum: []EnumOption{
					{Literal: constants.MuscleUnknown, Keywords: []string{"unknown", "unclear"}},
					{Literal: constants.MuscleHigh, Keywords: []string{"high", "muscular", "athletic", "heavy"}},
					{Literal: constants.MuscleModerate, Keywords: []string{"moderate", "medium", "average"}},
					{Literal: constants.MuscleLow, Keywords: []string{"low", "slim", "skinny"}},
				}},
			{Name: "focus_areas", Kind: KindStringList, Default: []string{}, MaxItems: 8,
				Description: "muscle groups to prioritise"},
			{Name: "notes", Kind: KindString, Default: ""},
		},
		RefusalFallback: &entity.PhysiqueAnalysis{
			EstBodyFat: 15,
			MuscleMass: constants.MuscleUnknown,
			FocusAreas: []string{"General Strength"},
			Notes:      PhysiqueFallbackNotes,
		},
	}
}

func FaceContract() Contract {
	return Contract{
		Domain:      constants.DomainFace,
		RawKind:     constants.RawKindImage,
		Temperature: 0.2,
		Prompt:      "Analyze this.",
		Brief:       "Analyze this face for GROOMING and STYLE advice only.",
		Fields: []FieldSpec{
			{Name: "rating", Kind: KindNumber, Required: true, Range: ratingRange,
				Description: "aesthetic score", Aliases: []string{"score", "aesthetic_rating"}},
			{Name: "suggestions", Kind: KindStringList, Default: []string{}, MaxItems: 10},
			{Name: "products", Kind: KindStringList, Default: []string{}, MaxItems: 10},
			{Name: "notes", Kind: KindString, Default: ""},
		},
	}
}

func ChatContract() Contract {
	return Contract{
		Domain:      constants.DomainChatScreenshot,
		RawKind:     constants.RawKindImage,
		Temperature: 0.2,
		Prompt:      "Analyze this chat log.",
		Brief: "You are a social dynamics expert. Analyze the screenshot of this chat. " +
			"Identify the other person's name if visible, else 'Unknown'. " +
			"Determine the status of the relationship, score their interest level, and add a brief note on the dynamic. " +
			"Estimate the time of the last message relative to now if visible, else use the current time.",
		Fields: []FieldSpec{
			{Name: "name", Kind: KindString, Default: "Unknown", Aliases: []string{"contact", "contact_name"}},
			{Name: "status", Kind: KindEnum, EnumDefault: string(constants.ChatTalkingStage),
				Aliases: []string{"relationship_status"},
				Enum: []EnumOption{
					{Literal: string(constants.ChatTalkingStage), Keywords: []string{"talking"}},
					{Literal: string(constants.ChatFriendzone), Keywords: []string{"friend"}},
					{Literal: string(constants.ChatCrush), Keywords: []string{"crush"}},
					{Literal: string(constants.ChatRoster), Keywords: []string{"roster"}},
					{Literal: string(constants.ChatCold), Keywords: []string{"cold", "ghost", "dry"}},
				}},
			{Name: "score", Kind: KindInteger, Required: true, Range: scoreRange,
				Description: "interest level", Aliases: []string{"interest_score", "interest"}},
			{Name: "notes", Kind: KindString, Default: "", Aliases: []string{"note"}},
			{Name: "last_msg_time", Kind: KindTimestamp, Aliases: []string{"last_message_time", "last_msg"}},
		},
	}
}

func StudyContract() Contract {
	return Contract{
		Domain:      constants.DomainStudyDocument,
		RawKind:     constants.RawKindTextDocument,
		Temperature: 0.2,
		Prompt:      "Analyze this study text:",
		Brief: "You are a studying assistant. Analyze the provided text from a study document. " +
			"Limit to 5 high-quality flashcards.",
		Fields: []FieldSpec{
			{Name: "summary", Kind: KindString, Required: true,
				Description: "concise summary of the key concepts, at most 3 sentences"},
			{Name: "flashcards", Kind: KindObjectList, Default: []any{}, MaxItems: 5,
				Aliases: []string{"cards"},
				Items: []FieldSpec{
					{Name: "front", Kind: KindString, Required: true, Description: "question or term", Aliases: []string{"question", "term"}},
					{Name: "back", Kind: KindString, Required: true, Description: "answer or definition", Aliases: []string{"answer", "definition"}},
				}},
			{Name: "topics", Kind: KindStringList, Default: []string{}, MaxItems: 12},
		},
	}
}

func enumOf(literals []string) []EnumOption {
	out := make([]EnumOption, 0, len(literals))
	for _, l := range literals {
		out = append(out, EnumOption{Literal: l})
	}
	return out
}

func matchCategory(raw string) (string, bool) {
	c, ok := constants.Canonicalize(raw)
	return string(c), ok
}
