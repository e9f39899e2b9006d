package enums

import "fmt"

// CheckoutMode records whether an order went through the mock or the live payment path.
type CheckoutMode string

const (
	CheckoutModeTest CheckoutMode = "test"
	CheckoutModeLive CheckoutMode = "live"
)

var validCheckoutModes = []CheckoutMode{
	CheckoutModeTest,
	CheckoutModeLive,
}

// String implements fmt.Stringer.
func (v CheckoutMode) String() string {
	return string(v)
}

// IsValid reports whether the value is a known CheckoutMode.
func (v CheckoutMode) IsValid() bool {
	for _, candidate := range validCheckoutModes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseCheckoutMode converts raw input into a CheckoutMode.
func ParseCheckoutMode(value string) (CheckoutMode, error) {
	for _, candidate := range validCheckoutModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout mode %q", value)
}
