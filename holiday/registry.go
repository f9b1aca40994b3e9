package holiday

import (
	"fmt"
	"sync"

	"github.com/warp/leave-engine/generic"
)

var errUnknownLocale = fmt.Errorf("%w: unknown locale", generic.ErrConfiguration)

// =============================================================================
// REGISTRY - Tenant -> calendar resolution
// =============================================================================

// Registry resolves the holiday calendar of each tenant. Tenants without an
// explicit table fall back to the default locale; with no default either,
// resolution fails closed.
type Registry struct {
	mu            sync.RWMutex
	tenants       map[generic.TenantID]*Calendar
	defaultLocale string
	defaultCal    *Calendar
}

// NewRegistry creates a registry. An empty defaultLocale means tenants must
// be configured explicitly.
func NewRegistry(defaultLocale string) (*Registry, error) {
	r := &Registry{
		tenants:       make(map[generic.TenantID]*Calendar),
		defaultLocale: defaultLocale,
	}
	if defaultLocale != "" {
		c, err := LookupLocale(defaultLocale)
		if err != nil {
			return nil, err
		}
		r.defaultCal = c
	}
	return r, nil
}

// Set installs a tenant-specific calendar.
func (r *Registry) Set(tenant generic.TenantID, c *Calendar) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("tenant %s: %w", tenant, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[tenant] = c
	return nil
}

// SetLocale installs a built-in locale for a tenant.
func (r *Registry) SetLocale(tenant generic.TenantID, locale string) error {
	c, err := LookupLocale(locale)
	if err != nil {
		return err
	}
	return r.Set(tenant, c)
}

// Remove drops a tenant override; the tenant falls back to the default.
func (r *Registry) Remove(tenant generic.TenantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tenants, tenant)
}

// For returns the tenant's calendar.
func (r *Registry) For(tenant generic.TenantID) (*Calendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.tenants[tenant]; ok {
		return c, nil
	}
	if r.defaultCal != nil {
		return r.defaultCal, nil
	}
	return nil, fmt.Errorf("tenant %s: %w", tenant, generic.ErrHolidayTableMissing)
}

// DefaultLocale returns the fallback locale name.
func (r *Registry) DefaultLocale() string { return r.defaultLocale }
