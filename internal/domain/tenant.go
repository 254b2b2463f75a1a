package domain

import (
	"fmt"
	"regexp"
	"time"
)

// TenantKey is the authenticated tenant identifier. It doubles as the key
// for the tenant's vector collection, so it is restricted to a slug that is
// safe to embed in a storage identifier.
type TenantKey string

var tenantKeyPattern = regexp.MustCompile(`^[a-z0-9_]{1,40}$`)

// ValidTenantKey reports whether key matches [a-z0-9_]{1,40}.
func ValidTenantKey(key TenantKey) bool {
	return tenantKeyPattern.MatchString(string(key))
}

// Tenant represents an isolated consumer of the system
type Tenant struct {
	ID        string
	Key       TenantKey
	Name      string
	CreatedAt time.Time
}

// NewTenant creates a new Tenant instance
func NewTenant(id string, key TenantKey, name string, createdAt time.Time) *Tenant {
	return &Tenant{
		ID:        id,
		Key:       key,
		Name:      name,
		CreatedAt: createdAt,
	}
}

// ValidateTenant validates a Tenant instance
func ValidateTenant(t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant cannot be nil")
	}

	if t.ID == "" {
		return fmt.Errorf("tenant ID is required")
	}

	if t.Key == "" {
		return fmt.Errorf("tenant Key is required")
	}

	if !ValidTenantKey(t.Key) {
		return ErrInvalidTenantKey
	}

	if t.Name == "" {
		return fmt.Errorf("tenant Name is required")
	}

	return nil
}
