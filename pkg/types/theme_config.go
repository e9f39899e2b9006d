package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// ThemeConfigVersion is the current layout of the stored theme document.
const ThemeConfigVersion = 1

// ThemeConfig is the typed storefront theme document kept in stores.theme_config.
//
// Version 0 documents were written with camelCase keys ("primaryColor",
// "heroTitle"); version 1 uses snake_case. ParseThemeConfig is the only place
// that knows about the old spelling.
type ThemeConfig struct {
	Version int          `json:"version"`
	Style   ThemeStyle   `json:"style"`
	Content ThemeContent `json:"content"`
}

type ThemeStyle struct {
	PrimaryColor    string `json:"primary_color,omitempty"`
	AccentColor     string `json:"accent_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
	FontFamily      string `json:"font_family,omitempty"`
	Layout          string `json:"layout,omitempty"`
}

type ThemeContent struct {
	Tagline          string `json:"tagline,omitempty"`
	HeroTitle        string `json:"hero_title,omitempty"`
	HeroSubtitle     string `json:"hero_subtitle,omitempty"`
	AboutText        string `json:"about_text,omitempty"`
	FooterText       string `json:"footer_text,omitempty"`
	AnnouncementText string `json:"announcement_text,omitempty"`
	LogoURL          string `json:"logo_url,omitempty"`
	BannerURL        string `json:"banner_url,omitempty"`
}

// DefaultThemeConfig returns an empty current-version document.
func DefaultThemeConfig() ThemeConfig {
	return ThemeConfig{Version: ThemeConfigVersion}
}

// ParseThemeConfig decodes a stored theme document of any known version and
// returns it in the current layout. Empty input yields the default document.
func ParseThemeConfig(raw []byte) (ThemeConfig, error) {
	doc, err := decodeThemeDocument(raw)
	if err != nil {
		return ThemeConfig{}, err
	}
	return themeFromDocument(doc)
}

// MergeThemePatch deep-merges a partial theme document into cfg. Keys set to
// null in the patch are removed. The patch may use either key spelling.
func MergeThemePatch(cfg ThemeConfig, patch []byte) (ThemeConfig, error) {
	current, err := themeToDocument(cfg)
	if err != nil {
		return ThemeConfig{}, err
	}
	overlay, err := decodeThemeDocument(patch)
	if err != nil {
		return ThemeConfig{}, err
	}
	return themeFromDocument(mergeDocuments(current, overlay))
}

// Value implements driver.Valuer.
func (c ThemeConfig) Value() (driver.Value, error) {
	if c.Version == 0 {
		c.Version = ThemeConfigVersion
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("theme config: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner and migrates legacy documents on read.
func (c *ThemeConfig) Scan(value any) error {
	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("theme config: unsupported scan type %T", value)
	}
	parsed, err := ParseThemeConfig(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func decodeThemeDocument(raw []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return map[string]any{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, fmt.Errorf("theme config: %w", err)
	}
	return normalizeKeys(doc), nil
}

func themeFromDocument(doc map[string]any) (ThemeConfig, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return ThemeConfig{}, fmt.Errorf("theme config: %w", err)
	}
	var cfg ThemeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ThemeConfig{}, fmt.Errorf("theme config: %w", err)
	}
	cfg.Version = ThemeConfigVersion
	return cfg, nil
}

func themeToDocument(cfg ThemeConfig) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("theme config: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("theme config: %w", err)
	}
	return doc, nil
}

// normalizeKeys rewrites camelCase keys to snake_case. When both spellings are
// present the snake_case value wins.
func normalizeKeys(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		if nested, ok := value.(map[string]any); ok {
			value = normalizeKeys(nested)
		}
		snake := toSnake(key)
		if snake != key {
			if _, exists := doc[snake]; exists {
				continue
			}
		}
		out[snake] = value
	}
	return out
}

func mergeDocuments(base, overlay map[string]any) map[string]any {
	for key, value := range overlay {
		if value == nil {
			delete(base, key)
			continue
		}
		nested, isMap := value.(map[string]any)
		existing, baseIsMap := base[key].(map[string]any)
		if isMap && baseIsMap {
			base[key] = mergeDocuments(existing, nested)
			continue
		}
		base[key] = value
	}
	return base
}

func toSnake(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
