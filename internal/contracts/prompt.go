package contracts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildInstruction composes the system turn: the domain brief, per-field
// rules, shared formatting rules and the JSON Schema.
func buildInstruction(c Contract) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.Brief))
	b.WriteString("\n\nFields:\n")
	for _, f := range c.Fields {
		b.WriteString("- ")
		b.WriteString(f.Name)
		b.WriteString(" (")
		b.WriteString(fieldTypeLabel(f))
		if f.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if f.Description != "" {
			b.WriteString(": ")
			b.WriteString(f.Description)
		}
		b.WriteString("\n")
	}

	parts := []string{
		"Return ONLY one JSON object that matches the JSON Schema below.",
		"Do not wrap it in Markdown code fences and do not add commentary before or after it.",
		"Never output null. If an optional field is not visible, omit it.",
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(parts, " "))
	b.WriteString("\n\nJSON Schema:\n")
	b.WriteString(mustJSON(c.schemaMap))
	return b.String()
}

func fieldTypeLabel(f FieldSpec) string {
	switch f.Kind {
	case KindEnum:
		return "one of: " + strings.Join(f.Literals(), ", ")
	case KindNumber, KindInteger:
		if f.Range != nil {
			return fmt.Sprintf("%s %g-%g", f.Kind, f.Range.Min, f.Range.Max)
		}
		return string(f.Kind)
	case KindDate:
		return "date YYYY-MM-DD"
	case KindTimestamp:
		return "ISO-8601 timestamp"
	case KindStringList:
		if f.MaxItems > 0 {
			return fmt.Sprintf("list of strings, at most %d", f.MaxItems)
		}
		return "list of strings"
	case KindObjectList:
		names := make([]string, 0, len(f.Items))
		for _, it := range f.Items {
			names = append(names, it.Name)
		}
		label := "list of {" + strings.Join(names, ", ") + "}"
		if f.MaxItems > 0 {
			label += fmt.Sprintf(", at most %d", f.MaxItems)
		}
		return label
	default:
		return "string"
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
