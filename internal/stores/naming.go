package stores

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/angelmondragon/storefront-backend/pkg/money"
)

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugSeparator = strings.NewReplacer("-", " ", "_", " ")
	titleCaser    = cases.Title(language.English)
)

// DisplayName returns name, or the slug title-cased when the store was
// created without one ("my-shop" becomes "My Shop").
func DisplayName(name, slug string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return titleCaser.String(slugSeparator.Replace(slug))
}

// ValidSlug reports whether slug is lower-case words joined by single dashes.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

func normalizeCurrency(code string) string {
	return money.NormalizeCurrency(code)
}
