package outbox

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PayloadEnvelope is the stable message layout stored in outbox_events and
// published as the message body.
type PayloadEnvelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"eventId"`
	EventType  enums.OutboxEventType `json:"eventType"`
	OccurredAt time.Time             `json:"occurredAt"`
	Data       json.RawMessage       `json:"data"`
}

// DecodeEnvelope parses a stored payload.
func DecodeEnvelope(payload string) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	err := json.Unmarshal([]byte(payload), &envelope)
	return envelope, err
}
