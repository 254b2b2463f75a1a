package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTenant(t *testing.T) {
	now := time.Now()
	tenant := NewTenant("tenant1", "acme", "Acme Corp", now)

	assert.Equal(t, "tenant1", tenant.ID)
	assert.Equal(t, TenantKey("acme"), tenant.Key)
	assert.Equal(t, "Acme Corp", tenant.Name)
	assert.Equal(t, now, tenant.CreatedAt)
}

func TestValidTenantKey(t *testing.T) {
	tests := []struct {
		name  string
		key   TenantKey
		valid bool
	}{
		{name: "simple slug", key: "acme", valid: true},
		{name: "with digits and underscore", key: "acme_42", valid: true},
		{name: "single char", key: "a", valid: true},
		{name: "max length", key: TenantKey("a234567890a234567890a234567890a234567890"), valid: true},
		{name: "empty", key: "", valid: false},
		{name: "uppercase", key: "Acme", valid: false},
		{name: "hyphen", key: "acme-corp", valid: false},
		{name: "space", key: "acme corp", valid: false},
		{name: "sql injection attempt", key: "acme; drop table users", valid: false},
		{name: "too long", key: TenantKey("a234567890a234567890a234567890a2345678901"), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidTenantKey(tt.key))
		})
	}
}

func TestValidateTenant(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		tenant  *Tenant
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid tenant",
			tenant: &Tenant{
				ID:        "tenant1",
				Key:       "acme",
				Name:      "Acme Corp",
				CreatedAt: now,
			},
			wantErr: false,
		},
		{
			name: "missing ID",
			tenant: &Tenant{
				Key:       "acme",
				Name:      "Acme Corp",
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name: "missing Key",
			tenant: &Tenant{
				ID:        "tenant1",
				Name:      "Acme Corp",
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "Key",
		},
		{
			name: "invalid Key",
			tenant: &Tenant{
				ID:        "tenant1",
				Key:       "Acme Corp",
				Name:      "Acme Corp",
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "tenant key",
		},
		{
			name: "missing Name",
			tenant: &Tenant{
				ID:        "tenant1",
				Key:       "acme",
				CreatedAt: now,
			},
			wantErr: true,
			errMsg:  "Name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTenant(tt.tenant)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
