package products

import (
	"regexp"
	"strings"
)

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveSlug builds the URL slug for a product title: lower-cased, every run
// of characters outside [a-z0-9] collapsed to one dash, no leading or
// trailing dash. DeriveSlug(DeriveSlug(x)) == DeriveSlug(x).
func DeriveSlug(title string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}
