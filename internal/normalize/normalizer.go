// Package normalize turns recovered model output into typed, range-checked
// domain records.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/contracts"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
)

// Normalizer applies a contract's field rules to a recovered JSON object.
// It holds no per-call state and is safe for concurrent use.
type Normalizer struct {
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Normalizer)

// WithClock overrides the time source used for date and timestamp defaults.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{now: time.Now, logger: logger}
	for _, o := range opts {
		o(n)
	}
	return n
}

// report collects what normalization changed, for logging and domain rules.
type report struct {
	renamed   []string
	dropped   []string
	clamped   []string
	defaulted map[string]bool
}

// Normalize parses recovered as a JSON object and returns the typed record
// together with the normalized field map. Failures are StageErrors at the
// normalize stage, of kind ErrMalformedResponse or ErrMissingField.
func (n *Normalizer) Normalize(c contracts.Contract, recovered string) (entity.Record, map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(recovered), &v); err != nil {
		return nil, nil, n.fail(c, common.ErrMalformedResponse, fmt.Errorf("parse: %w", err))
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, nil, n.fail(c, common.ErrMalformedResponse, fmt.Errorf("expected a JSON object, got %s", jsonKind(v)))
	}

	rep := &report{defaulted: make(map[string]bool)}
	now := n.now()
	in := canonicalizeKeys(raw, c.Fields, rep)

	out := make(map[string]any, len(c.Fields))
	var missing []string
	for _, f := range c.Fields {
		val, err := applyField(f, in[f.Name], now, rep)
		if err != nil {
			if errors.Is(err, errAbsent) {
				missing = append(missing, f.Name)
				continue
			}
			return nil, nil, n.fail(c, common.ErrMalformedResponse, err)
		}
		out[f.Name] = val
	}
	if len(missing) > 0 {
		return nil, nil, n.fail(c, common.ErrMissingField, fmt.Errorf("required fields absent: %s", strings.Join(missing, ", ")))
	}

	if rule, ok := domainRules[c.Domain]; ok {
		rule(out, rep)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, nil, n.fail(c, common.ErrMalformedResponse, fmt.Errorf("encode normalized record: %w", err))
	}
	if err := c.ValidateJSON(data); err != nil {
		return nil, nil, n.fail(c, common.ErrMalformedResponse, err)
	}

	rec, ok := entity.NewRecord(c.Domain)
	if !ok {
		return nil, nil, n.fail(c, common.ErrMalformedResponse, fmt.Errorf("no record type for domain %s", c.Domain))
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, nil, n.fail(c, common.ErrMalformedResponse, fmt.Errorf("decode record: %w", err))
	}
	if err := common.ValidateStruct(rec); err != nil {
		return nil, nil, n.fail(c, common.ErrMalformedResponse, err)
	}

	if len(rep.renamed)+len(rep.dropped)+len(rep.clamped) > 0 {
		n.logger.Warn("normalize.sanitize",
			"domain", c.Domain,
			"renamed", rep.renamed,
			"dropped", rep.dropped,
			"clamped", rep.clamped,
		)
	}
	n.logger.Debug("normalize.ok", "domain", c.Domain, "defaulted", sortedKeys(rep.defaulted))
	return rec, out, nil
}

func (n *Normalizer) fail(c contracts.Contract, kind, err error) error {
	n.logger.Warn("normalize.failed", "domain", c.Domain, "kind", kind.Error(), "error", err)
	return common.NewStageError(common.StageNormalize, kind, err).WithDomain(string(c.Domain))
}

// canonicalizeKeys maps raw keys onto field names: exact names win over
// aliases, and keys matching no field are dropped.
func canonicalizeKeys(raw map[string]any, fields []contracts.FieldSpec, rep *report) map[string]any {
	lookup := make(map[string]string)
	for _, f := range fields {
		for _, a := range f.Aliases {
			lookup[keyForm(a)] = f.Name
		}
	}
	for _, f := range fields {
		lookup[keyForm(f.Name)] = f.Name
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(fields))
	for _, k := range keys {
		name, ok := lookup[keyForm(k)]
		if !ok {
			rep.dropped = append(rep.dropped, k)
			continue
		}
		if keyForm(k) == keyForm(name) {
			out[name] = raw[k]
		}
	}
	for _, k := range keys {
		name, ok := lookup[keyForm(k)]
		if !ok || keyForm(k) == keyForm(name) {
			continue
		}
		if _, exists := out[name]; exists {
			rep.dropped = append(rep.dropped, k)
			continue
		}
		out[name] = raw[k]
		rep.renamed = append(rep.renamed, k+"->"+name)
	}
	return out
}

func keyForm(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, "-", "_")
	return strings.ReplaceAll(k, " ", "_")
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
