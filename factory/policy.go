/*
Package factory turns tenant configuration files into engine objects.

PURPOSE:
  Converts YAML (or JSON, which YAML parses as well) tenant definitions
  into leave.Policy values, holiday calendars and seed users. This lets
  operators configure jurisdictions and allowances without code changes.

POLICY SCHEMA:
  policy:
    default_total_days: 20      # annual allowance for new records
    accrual: elapsed_days       # elapsed_days | monthly | upfront
    allow_negative: true        # false rejects overdrawing submissions

  Omitted fields inherit from the fallback policy.

USAGE:
  f := factory.NewPolicyFactory(leave.DefaultPolicy())
  policy, err := f.ParsePolicy([]byte("accrual: monthly"))

SEE ALSO:
  - tenant.go: Whole tenant files
  - leave/policy.go: Policy type definition
*/
package factory

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// PolicyYAML is the file representation of a policy.
type PolicyYAML struct {
	DefaultTotalDays *float64 `yaml:"default_total_days,omitempty" json:"default_total_days,omitempty"`
	Accrual          string   `yaml:"accrual,omitempty" json:"accrual,omitempty"`
	AllowNegative    *bool    `yaml:"allow_negative,omitempty" json:"allow_negative,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts policy definitions to leave.Policy.
type PolicyFactory struct {
	fallback leave.Policy
}

// NewPolicyFactory creates a factory whose omitted fields come from fallback.
func NewPolicyFactory(fallback leave.Policy) *PolicyFactory {
	return &PolicyFactory{fallback: fallback}
}

// ParsePolicy parses a YAML document into a Policy.
func (f *PolicyFactory) ParsePolicy(data []byte) (leave.Policy, error) {
	var py PolicyYAML
	if err := yaml.Unmarshal(data, &py); err != nil {
		return leave.Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	return f.FromYAML(py)
}

// FromYAML converts PolicyYAML to leave.Policy.
func (f *PolicyFactory) FromYAML(py PolicyYAML) (leave.Policy, error) {
	p := f.fallback
	if py.DefaultTotalDays != nil {
		if *py.DefaultTotalDays < 0 {
			return leave.Policy{}, fmt.Errorf("%w: default_total_days cannot be negative", generic.ErrConfiguration)
		}
		p.DefaultTotalDays = generic.NewDays(*py.DefaultTotalDays)
	}
	if py.Accrual != "" {
		fn, err := leave.LookupAccrual(py.Accrual)
		if err != nil {
			return leave.Policy{}, err
		}
		p.AccrualName = py.Accrual
		p.Accrual = fn
	}
	if py.AllowNegative != nil {
		p.AllowNegative = *py.AllowNegative
	}
	return p, nil
}

// ToYAML converts a Policy back to its file form.
func (f *PolicyFactory) ToYAML(p leave.Policy) PolicyYAML {
	total := p.DefaultTotalDays.Float64()
	allow := p.AllowNegative
	return PolicyYAML{
		DefaultTotalDays: &total,
		Accrual:          p.AccrualName,
		AllowNegative:    &allow,
	}
}
