package enums

import "fmt"

// StoreStatus controls whether a tenant storefront is publicly reachable.
type StoreStatus string

const (
	StoreStatusActive   StoreStatus = "active"
	StoreStatusInactive StoreStatus = "inactive"
)

var validStoreStatuses = []StoreStatus{
	StoreStatusActive,
	StoreStatusInactive,
}

// String implements fmt.Stringer.
func (v StoreStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known StoreStatus.
func (v StoreStatus) IsValid() bool {
	for _, candidate := range validStoreStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseStoreStatus converts raw input into a StoreStatus.
func ParseStoreStatus(value string) (StoreStatus, error) {
	for _, candidate := range validStoreStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid store status %q", value)
}
