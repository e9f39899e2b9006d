// Package models holds the gorm row types for the storefront schema.
package models

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Store{},
		&Product{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&OutboxEvent{},
	}
}
