package constants

import (
	"strings"
)

// Category is the spending bucket stored on a transaction row.
type Category string

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Utilities     Category = "Utilities"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Health        Category = "Health"
	Other         Category = "Other"
)

var allCategories = []Category{
	Food,
	Transport,
	Utilities,
	Entertainment,
	Shopping,
	Health,
	Other,
}

// categoryKeywords are checked in order as substrings of the lowercased label.
var categoryKeywords = []struct {
	keyword  string
	category Category
}{
	{"grocer", Food},
	{"restaurant", Food},
	{"coffee", Food},
	{"cafe", Food},
	{"dining", Food},
	{"meal", Food},
	{"food", Food},
	{"uber", Transport},
	{"lyft", Transport},
	{"taxi", Transport},
	{"fuel", Transport},
	{"gas station", Transport},
	{"parking", Transport},
	{"transit", Transport},
	{"travel", Transport},
	{"transport", Transport},
	{"electric", Utilities},
	{"water", Utilities},
	{"internet", Utilities},
	{"phone", Utilities},
	{"utilit", Utilities},
	{"cinema", Entertainment},
	{"movie", Entertainment},
	{"game", Entertainment},
	{"concert", Entertainment},
	{"streaming", Entertainment},
	{"entertain", Entertainment},
	{"clothing", Shopping},
	{"retail", Shopping},
	{"store", Shopping},
	{"shop", Shopping},
	{"pharma", Health},
	{"medic", Health},
	{"doctor", Health},
	{"gym", Health},
	{"fitness", Health},
	{"health", Health},
}

// Categories returns the allowed category literals.
func Categories() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form label onto a Category. The bool reports whether
// anything matched; unmatched labels come back as Other.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	for _, kw := range categoryKeywords {
		if strings.Contains(normalized, kw.keyword) {
			return kw.category, true
		}
	}

	return Other, false
}
