// Package contracts holds the per-domain extraction contracts: what the model is
// asked to return and how its answer is checked.
package contracts

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
)

// Kind is the value type of a contract field.
type Kind string

const (
	KindString     Kind = "string"
	KindNumber     Kind = "number"
	KindInteger    Kind = "integer"
	KindEnum       Kind = "enum"
	KindDate       Kind = "date"      // YYYY-MM-DD, defaults to today
	KindTimestamp  Kind = "timestamp" // RFC 3339, defaults to now
	KindStringList Kind = "string-list"
	KindObjectList Kind = "object-list"
)

// Range is an inclusive clamp window for numeric fields.
type Range struct {
	Min float64
	Max float64
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// EnumOption is one allowed literal plus the substrings that select it.
type EnumOption struct {
	Literal  string
	Keywords []string
}

// FieldSpec declares one field of a domain record.
type FieldSpec struct {
	Name        string
	Kind        Kind
	Description string
	Required    bool
	Default     any // optional fields only; nil on date/timestamp means "now"
	Range       *Range
	Enum        []EnumOption
	EnumDefault string
	// Match overrides keyword matching for enum fields.
	Match    func(raw string) (string, bool)
	MaxItems int
	Aliases  []string
	Items    []FieldSpec // members of object-list entries
}

// Literals lists the enum literals in declaration order.
func (f FieldSpec) Literals() []string {
	out := make([]string, 0, len(f.Enum))
	for _, o := range f.Enum {
		out = append(out, o.Literal)
	}
	return out
}

// MatchEnum maps raw onto an allowed literal: exact (case-insensitive) first,
// then the first option whose literal or keyword is a substring of raw.
func (f FieldSpec) MatchEnum(raw string) (string, bool) {
	if f.Match != nil {
		return f.Match(raw)
	}
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return f.EnumDefault, false
	}
	for _, o := range f.Enum {
		if s == strings.ToLower(o.Literal) {
			return o.Literal, true
		}
	}
	for _, o := range f.Enum {
		if strings.Contains(s, strings.ToLower(o.Literal)) {
			return o.Literal, true
		}
		for _, kw := range o.Keywords {
			if strings.Contains(s, kw) {
				return o.Literal, true
			}
		}
	}
	return f.EnumDefault, false
}

// Contract is the extraction contract for one domain. Values returned by a
// Registry must be treated as read-only.
type Contract struct {
	Domain      constants.Domain
	RawKind     constants.RawKind
	Brief       string  // domain-specific part of the instruction
	Prompt      string  // user-turn lead-in
	Temperature float32 // within [0.1, 0.2]
	Fields      []FieldSpec

	// RefusalFallback is served instead of an error when inference, recovery or
	// normalization fails. Nil for domains that must surface failures.
	RefusalFallback entity.Record

	instruction string
	schemaMap   map[string]any
	schema      *jsonschema.Schema
}

// Instruction is the full system-turn text sent to the inference collaborator.
func (c Contract) Instruction() string { return c.instruction }

// Tolerant reports whether failures for this domain are masked by a default record.
func (c Contract) Tolerant() bool { return c.RefusalFallback != nil }

// Fallback returns a fresh copy of the refusal fallback record.
func (c Contract) Fallback() (entity.Record, bool) {
	if c.RefusalFallback == nil {
		return nil, false
	}
	b, err := json.Marshal(c.RefusalFallback)
	if err != nil {
		return nil, false
	}
	rec, ok := entity.NewRecord(c.Domain)
	if !ok || json.Unmarshal(b, rec) != nil {
		return nil, false
	}
	return rec, true
}

// RequiredFields lists the fields whose absence is a MissingField failure.
func (c Contract) RequiredFields() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// OptionalFieldDefaults maps optional fields to their static defaults. Date and
// timestamp fields without a static default are omitted; they resolve at call time.
func (c Contract) OptionalFieldDefaults() map[string]any {
	out := make(map[string]any)
	for _, f := range c.Fields {
		if f.Required {
			continue
		}
		switch {
		case f.Default != nil:
			out[f.Name] = f.Default
		case f.Kind == KindEnum:
			out[f.Name] = f.EnumDefault
		}
	}
	return out
}

// Field looks up a field spec by name.
func (c Contract) Field(name string) (FieldSpec, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Schema returns the JSON Schema for the record shape.
func (c Contract) Schema() map[string]any { return c.schemaMap }
