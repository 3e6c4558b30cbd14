package events

import "context"

// Streams
const (
	StreamOrders = "events:order"
)

// Event types
const (
	EventOrderStatusChanged = "order_status_changed"
	EventPaymentReceived    = "payment_received"
	EventMirrorDiverged     = "mirror_diverged"
	EventOrderReconciled    = "order_reconciled"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher discards events; used in tests and one-shot tools.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, stream string, event Event) error { return nil }
