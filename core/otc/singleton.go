package otc

import "sync"

var (
	tenantOnce   sync.Once
	globalTenant *Tenant
)

// InitTenant installs the process-wide Tenant singleton used by the CLI
// layer, mirroring core.InitEngine's lazy sync.Once-gated pattern.
func InitTenant(t *Tenant) {
	tenantOnce.Do(func() { globalTenant = t })
}

// CurrentTenant returns the global Tenant instance, or nil if InitTenant
// has not run yet.
func CurrentTenant() *Tenant { return globalTenant }
