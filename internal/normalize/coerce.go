package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/contracts"
)

// errAbsent marks a required field that is missing or blank.
var errAbsent = errors.New("absent")

var (
	numberRe       = regexp.MustCompile(`[-+]?(?:\d[\d.,]*\d|\d|[.,]\d+)`)
	currencyStrip  = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "")
	listSplitRe    = regexp.MustCompile(`[,;\n]+`)
	acceptedLayout = []string{
		time.RFC3339Nano,
		time.RFC3339,
		time.DateOnly,
		time.DateTime,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006/01/02",
		"01/02/2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"02 Jan 2006",
	}
)

func applyField(f contracts.FieldSpec, v any, now time.Time, rep *report) (any, error) {
	if isBlank(v) {
		if f.Required {
			return nil, errAbsent
		}
		rep.defaulted[f.Name] = true
		return defaultFor(f, now), nil
	}

	switch f.Kind {
	case contracts.KindNumber, contracts.KindInteger:
		num, ok := toNumber(v)
		if !ok {
			if f.Required {
				return nil, fmt.Errorf("field %s: %v is not a number", f.Name, v)
			}
			rep.defaulted[f.Name] = true
			return defaultFor(f, now), nil
		}
		if f.Kind == contracts.KindInteger {
			num = math.Round(num)
		}
		if f.Range != nil {
			clamped := f.Range.Clamp(num)
			if clamped != num {
				rep.clamped = append(rep.clamped, fmt.Sprintf("%s=%g->%g", f.Name, num, clamped))
			}
			num = clamped
		}
		return num, nil

	case contracts.KindEnum:
		lit, ok := f.MatchEnum(toString(v))
		if !ok {
			rep.defaulted[f.Name] = true
		}
		return lit, nil

	case contracts.KindDate:
		t, ok := parseTime(toString(v))
		if !ok {
			rep.defaulted[f.Name] = true
			return now.Format(time.DateOnly), nil
		}
		return t.Format(time.DateOnly), nil

	case contracts.KindTimestamp:
		t, ok := parseTime(toString(v))
		if !ok {
			rep.defaulted[f.Name] = true
			return now.UTC().Format(time.RFC3339), nil
		}
		return t.UTC().Format(time.RFC3339), nil

	case contracts.KindStringList:
		list, ok := toStringList(v)
		if !ok {
			if f.Required {
				return nil, fmt.Errorf("field %s: expected a list of strings", f.Name)
			}
			rep.defaulted[f.Name] = true
			return defaultFor(f, now), nil
		}
		return capList(list, f.MaxItems), nil

	case contracts.KindObjectList:
		items, ok := v.([]any)
		if !ok {
			if f.Required {
				return nil, fmt.Errorf("field %s: expected a list of objects", f.Name)
			}
			rep.defaulted[f.Name] = true
			return defaultFor(f, now), nil
		}
		out := make([]any, 0, len(items))
		for i, it := range items {
			obj, ok := normalizeItem(f, it, now, rep)
			if !ok {
				rep.dropped = append(rep.dropped, fmt.Sprintf("%s[%d]", f.Name, i))
				continue
			}
			out = append(out, obj)
		}
		return capList(out, f.MaxItems), nil

	default:
		return toString(v), nil
	}
}

// normalizeItem applies the member specs of an object-list entry. Entries
// missing a required member are rejected.
func normalizeItem(f contracts.FieldSpec, v any, now time.Time, rep *report) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	in := canonicalizeKeys(m, f.Items, rep)
	out := make(map[string]any, len(f.Items))
	for _, member := range f.Items {
		val, err := applyField(member, in[member.Name], now, rep)
		if err != nil {
			return nil, false
		}
		out[member.Name] = val
	}
	return out, true
}

func defaultFor(f contracts.FieldSpec, now time.Time) any {
	if f.Default != nil {
		return cloneValue(f.Default)
	}
	switch f.Kind {
	case contracts.KindEnum:
		return f.EnumDefault
	case contracts.KindDate:
		return now.Format(time.DateOnly)
	case contracts.KindTimestamp:
		return now.UTC().Format(time.RFC3339)
	case contracts.KindNumber, contracts.KindInteger:
		return float64(0)
	case contracts.KindStringList:
		return []string{}
	case contracts.KindObjectList:
		return []any{}
	default:
		return ""
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...)
	case []any:
		return append([]any{}, t...)
	default:
		return v
	}
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := toString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// toNumber accepts JSON numbers and numeric strings such as "$10.50",
// "-1,234.5", "10,50 €", "75/100" or "15%". The first number in the string
// wins.
func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := currencyStrip.Replace(strings.TrimSpace(t))
		m := numberRe.FindString(s)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(resolveSeparators(m), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// resolveSeparators rewrites a number that may use "," or "." for grouping
// or decimals into Go float syntax. When both appear the later one is the
// decimal point. A lone comma followed by one or two digits is a decimal
// comma ("10,50"); otherwise commas group thousands. Repeated dots group
// thousands ("1.234.567").
func resolveSeparators(m string) string {
	lastComma := strings.LastIndexByte(m, ',')
	lastDot := strings.LastIndexByte(m, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			m = strings.ReplaceAll(m, ".", "")
			return strings.Replace(m, ",", ".", 1)
		}
		return strings.ReplaceAll(m, ",", "")
	case lastComma >= 0:
		if strings.Count(m, ",") == 1 {
			if frac := len(m) - lastComma - 1; frac >= 1 && frac <= 2 {
				return strings.Replace(m, ",", ".", 1)
			}
		}
		return strings.ReplaceAll(m, ",", "")
	case strings.Count(m, ".") > 1:
		return strings.ReplaceAll(m, ".", "")
	}
	return m
}

// toStringList accepts a JSON array (non-string members are stringified) or a
// delimited string. Blank and duplicate entries are dropped.
func toStringList(v any) ([]string, bool) {
	var parts []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			parts = append(parts, toString(e))
		}
	case string:
		parts = listSplitRe.Split(t, -1)
	default:
		return nil, false
	}

	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		key := strings.ToLower(p)
		if p == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out, true
}

func capList[T any](list []T, n int) []T {
	if n > 0 && len(list) > n {
		return list[:n]
	}
	return list
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedLayout {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
