package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role    Role
		allowed []Capability
		denied  []Capability
	}{
		{
			role:    RoleCustomer,
			allowed: []Capability{CapManageCart, CapPlaceOrder, CapViewOwnOrders, CapInitiatePayment},
			denied:  []Capability{CapViewAllOrders, CapTransitionOrders, CapManagePayments, CapDeleteOrders, CapExportOrders},
		},
		{
			role:    RoleStaff,
			allowed: []Capability{CapViewAllOrders, CapTransitionOrders, CapExportOrders, CapManageCart},
			denied:  []Capability{CapManagePayments, CapDeleteOrders},
		},
		{
			role:    RoleAdmin,
			allowed: []Capability{CapViewAllOrders, CapTransitionOrders, CapManagePayments, CapDeleteOrders, CapExportOrders},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			for _, c := range tt.allowed {
				assert.True(t, tt.role.Can(c), "capability %d", c)
			}
			for _, c := range tt.denied {
				assert.False(t, tt.role.Can(c), "capability %d", c)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("")
	assert.True(t, ok)
	assert.Equal(t, RoleCustomer, r)

	r, ok = ParseRole("Admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	r, ok = ParseRole("superuser")
	assert.False(t, ok)
	assert.False(t, r.Can(CapManageCart))
}
