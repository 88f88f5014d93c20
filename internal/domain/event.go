package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TriggerEvent is the inbound record that starts one invocation. It carries
// the timestamp interpreted as the query window's end instant. Consumed once;
// never mutated after construction.
type TriggerEvent struct {
	ID         uuid.UUID
	Source     string
	DetailType string

	Time time.Time // logical "now" for the invocation (window end)

	ReceivedAt time.Time
}

// eventEnvelope matches the EventBridge-style wire shape. Only "time" is
// required; the rest is carried through for logging.
type eventEnvelope struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	DetailType string `json:"detail-type"`
	Time       string `json:"time"`
}

// ParseTriggerEvent decodes an EventBridge-shaped JSON event. The "time"
// field must be present and ISO-8601. A missing or unparseable "id" gets a
// freshly generated UUID so every invocation is traceable in logs.
func ParseTriggerEvent(data []byte, receivedAt time.Time) (TriggerEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return TriggerEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if env.Time == "" {
		return TriggerEvent{}, fmt.Errorf("event is missing required field %q", "time")
	}

	t, err := time.Parse(time.RFC3339, env.Time)
	if err != nil {
		return TriggerEvent{}, fmt.Errorf("parse event time %q: %w", env.Time, err)
	}

	id, err := uuid.Parse(env.ID)
	if err != nil {
		id = uuid.New()
	}

	return TriggerEvent{
		ID:         id,
		Source:     env.Source,
		DetailType: env.DetailType,
		Time:       t,
		ReceivedAt: receivedAt,
	}, nil
}
