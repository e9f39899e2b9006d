package enums

import "fmt"

// OutboxEventType names an event queued in outbox_events.
type OutboxEventType string

const (
	EventOrderPaid      OutboxEventType = "order.paid"
	EventOrderCancelled OutboxEventType = "order.cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPaid,
	EventOrderCancelled,
}

// String implements fmt.Stringer.
func (v OutboxEventType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known OutboxEventType.
func (v OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

// IsValid reports whether the value is a known OutboxAggregateType.
func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder
}
