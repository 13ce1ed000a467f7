package domain

import "strings"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

type Capability uint32

const (
	CapManageCart Capability = 1 << iota
	CapPlaceOrder
	CapViewOwnOrders
	CapInitiatePayment
	CapViewAllOrders
	CapTransitionOrders
	CapManagePayments
	CapDeleteOrders
	CapExportOrders
)

type CapabilitySet uint32

func (s CapabilitySet) Has(c Capability) bool {
	return uint32(s)&uint32(c) != 0
}

func capabilities(cs ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range cs {
		s |= CapabilitySet(c)
	}
	return s
}

var shopperCaps = []Capability{CapManageCart, CapPlaceOrder, CapViewOwnOrders, CapInitiatePayment}

var roleCapabilities = map[Role]CapabilitySet{
	RoleCustomer: capabilities(shopperCaps...),
	RoleStaff:    capabilities(append([]Capability{CapViewAllOrders, CapTransitionOrders, CapExportOrders}, shopperCaps...)...),
	RoleAdmin: capabilities(append([]Capability{
		CapViewAllOrders, CapTransitionOrders, CapManagePayments, CapDeleteOrders, CapExportOrders,
	}, shopperCaps...)...),
}

// ParseRole maps a token claim onto the closed role set. Unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return RoleCustomer, true
	}
	_, ok := roleCapabilities[r]
	return r, ok
}

func (r Role) Can(c Capability) bool {
	return roleCapabilities[r].Has(c)
}
