package leave

import (
	"sync"

	"github.com/warp/leave-engine/generic"
)

// DefaultTotalDays is the annual allowance when nothing else is configured.
const DefaultTotalDays = 20

// Policy holds the tenant-level rules of the ledger.
type Policy struct {
	DefaultTotalDays generic.Days
	// AllowNegative lets a submission exceed the remaining entitlement; the
	// caller gets a warning instead of a rejection.
	AllowNegative bool
	AccrualName   string
	Accrual       AccrualFunc
}

// DefaultPolicy is 20 days, negative balances warned, elapsed-days accrual.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTotalDays: generic.NewDaysFromInt(DefaultTotalDays),
		AllowNegative:    true,
		AccrualName:      AccrualElapsedDays,
		Accrual:          ElapsedDaysAccrual,
	}
}

// StrictPolicy rejects submissions that would overdraw the entitlement.
func StrictPolicy(total generic.Days) Policy {
	p := DefaultPolicy()
	p.DefaultTotalDays = total
	p.AllowNegative = false
	return p
}

func (p Policy) Ledger() Ledger { return Ledger{Accrual: p.Accrual} }

// Policies maps tenants to policies with a shared fallback.
type Policies struct {
	mu       sync.RWMutex
	fallback Policy
	tenants  map[generic.TenantID]Policy
}

func NewPolicies(fallback Policy) *Policies {
	return &Policies{fallback: fallback, tenants: make(map[generic.TenantID]Policy)}
}

func (p *Policies) Set(tenant generic.TenantID, pol Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenants[tenant] = pol
}

func (p *Policies) For(tenant generic.TenantID) Policy {
	if p == nil {
		return DefaultPolicy()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pol, ok := p.tenants[tenant]; ok {
		return pol
	}
	return p.fallback
}
