package constants

import "strings"

// Domain selects an extraction contract.
type Domain string

const (
	DomainResume         Domain = "resume"
	DomainReceipt        Domain = "receipt"
	DomainPhysique       Domain = "physique"
	DomainFace           Domain = "face"
	DomainChatScreenshot Domain = "chat-screenshot"
	DomainStudyDocument  Domain = "study-document"
)

var allDomains = []Domain{
	DomainResume,
	DomainReceipt,
	DomainPhysique,
	DomainFace,
	DomainChatScreenshot,
	DomainStudyDocument,
}

// legacy route names used by the web client
var domainAliases = map[string]Domain{
	"careermaxxer":         DomainResume,
	"finmaxxer":            DomainReceipt,
	"looksmaxxer/physique": DomainPhysique,
	"looksmaxxer/face":     DomainFace,
	"rizzmaxxer":           DomainChatScreenshot,
	"studymaxxer":          DomainStudyDocument,
	"chat":                 DomainChatScreenshot,
	"study":                DomainStudyDocument,
}

// Domains returns every known domain in a stable order.
func Domains() []Domain {
	out := make([]Domain, len(allDomains))
	copy(out, allDomains)
	return out
}

// ParseDomain resolves a domain key or one of its aliases. Unknown input is
// returned as-is with ok=false so callers can report it.
func ParseDomain(s string) (Domain, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, d := range allDomains {
		if key == string(d) {
			return d, true
		}
	}
	if d, ok := domainAliases[key]; ok {
		return d, true
	}
	return Domain(key), false
}

// RawKind tells the input adapter how to treat a source reference.
type RawKind string

const (
	RawKindTextDocument RawKind = "text-document"
	RawKindImage        RawKind = "image"
)

// Valid reports whether k is a known kind.
func (k RawKind) Valid() bool {
	return k == RawKindTextDocument || k == RawKindImage
}

// TransactionType is the direction of money on a receipt.
type TransactionType string

const (
	TransactionExpense TransactionType = "expense"
	TransactionIncome  TransactionType = "income"
)

// ChatStatus is the relationship state inferred from a chat screenshot.
type ChatStatus string

const (
	ChatTalkingStage ChatStatus = "talking-stage"
	ChatFriendzone   ChatStatus = "friendzone"
	ChatCrush        ChatStatus = "crush"
	ChatRoster       ChatStatus = "roster"
	ChatCold         ChatStatus = "cold"
)

// Seniority levels for resume analysis.
const (
	SeniorityJunior = "Junior"
	SeniorityMid    = "Mid-Level"
	SenioritySenior = "Senior"
	SeniorityLead   = "Lead"
)

// Muscle mass levels for physique analysis.
const (
	MuscleLow      = "Low"
	MuscleModerate = "Moderate"
	MuscleHigh     = "High"
	MuscleUnknown  = "Unknown"
)
