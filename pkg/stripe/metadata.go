package stripe

import (
	"encoding/json"
	"fmt"
)

// Metadata keys attached to checkout sessions.
const (
	MetadataStoreID   = "store_id"
	MetadataStoreSlug = "store_slug"
	MetadataItems     = "items"
)

// MaxMetadataValueLength is Stripe's limit on a single metadata value.
const MaxMetadataValueLength = 500

// MetadataItem is the compact cart line stored in session metadata.
type MetadataItem struct {
	ProductID string `json:"p"`
	Quantity  int64  `json:"q"`
}

// EncodeMetadataItems serializes cart lines for the items metadata value.
// ok is false when the encoding would exceed Stripe's value limit.
func EncodeMetadataItems(items []MetadataItem) (value string, ok bool, err error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return "", false, fmt.Errorf("encode metadata items: %w", err)
	}
	if len(raw) > MaxMetadataValueLength {
		return "", false, nil
	}
	return string(raw), true, nil
}

// DecodeMetadataItems parses the items metadata value. An empty value yields
// no items.
func DecodeMetadataItems(value string) ([]MetadataItem, error) {
	if value == "" {
		return nil, nil
	}
	var items []MetadataItem
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, fmt.Errorf("decode metadata items: %w", err)
	}
	return items, nil
}
