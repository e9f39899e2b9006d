package stripe

import "strings"

const minSecretKeyLength = 20

var placeholderMarkers = []string{"placeholder", "your_", "changeme", "xxx"}

// IsTestMode reports whether secret cannot be a real Stripe key: empty,
// shorter than a real key, or one of the placeholder values shipped in
// example env files.
func IsTestMode(secret string) bool {
	key := strings.TrimSpace(secret)
	if len(key) < minSecretKeyLength {
		return true
	}
	lower := strings.ToLower(key)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
