package contracts

import (
	"fmt"
	"sort"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
)

// Registry maps domains to contracts. It is built once and never mutated.
type Registry struct {
	contracts map[constants.Domain]Contract
}

// NewRegistry prepares each contract (schema, instruction) and indexes it by domain.
func NewRegistry(defs ...Contract) (*Registry, error) {
	r := &Registry{contracts: make(map[constants.Domain]Contract, len(defs))}
	for _, c := range defs {
		if c.Domain == "" {
			return nil, fmt.Errorf("contract without domain")
		}
		if _, dup := r.contracts[c.Domain]; dup {
			return nil, fmt.Errorf("duplicate contract for domain %q", c.Domain)
		}
		if !c.RawKind.Valid() {
			return nil, fmt.Errorf("contract %s: invalid raw kind %q", c.Domain, c.RawKind)
		}
		if c.RefusalFallback != nil && c.RefusalFallback.Domain() != c.Domain {
			return nil, fmt.Errorf("contract %s: fallback record is for %s", c.Domain, c.RefusalFallback.Domain())
		}

		c.Fields = append([]FieldSpec(nil), c.Fields...)
		c.schemaMap = buildSchema(c.Fields)
		schema, err := compileSchema(string(c.Domain), c.schemaMap)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", c.Domain, err)
		}
		c.schema = schema
		c.instruction = buildInstruction(c)
		r.contracts[c.Domain] = c
	}
	return r, nil
}

// DefaultRegistry returns a registry holding the six built-in domains.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(
		ResumeContract(),
		ReceiptContract(),
		PhysiqueContract(),
		FaceContract(),
		ChatContract(),
		StudyContract(),
	)
}

// MustDefaultRegistry is DefaultRegistry for process start-up; it panics on a
// broken built-in contract.
func MustDefaultRegistry() *Registry {
	r, err := DefaultRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the contract for domain. Unknown domains fail with
// common.ErrUnknownDomain; there is no default contract.
func (r *Registry) Lookup(domain constants.Domain) (Contract, error) {
	c, ok := r.contracts[domain]
	if !ok {
		return Contract{}, common.NewStageError(common.StageContract, common.ErrUnknownDomain,
			fmt.Errorf("no contract registered for %q", domain)).WithDomain(string(domain))
	}
	return c, nil
}

// Domains lists the registered domains, sorted.
func (r *Registry) Domains() []constants.Domain {
	out := make([]constants.Domain, 0, len(r.contracts))
	for d := range r.contracts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
