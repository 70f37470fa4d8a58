package notifications

import (
	"context"
	"encoding/json"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/entrega-app/entrega-backend/pkg/enums"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

const publishTimeout = 15 * time.Second

// OrderEvent describes a single order status change. Events are emitted only
// after the owning transaction commits.
type OrderEvent struct {
	EventID    uuid.UUID         `json:"event_id"`
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	StoreID    uuid.UUID         `json:"store_id"`
	DriverID   *uuid.UUID        `json:"driver_id,omitempty"`
	Previous   enums.OrderStatus `json:"previous"`
	Current    enums.OrderStatus `json:"current"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier receives order lifecycle events. Implementations must never block
// the caller on delivery and must never surface delivery failures.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, event OrderEvent)
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// PubSubNotifier publishes order events to the configured topic.
// Delivery is fire and forget: a failed publish is logged and dropped.
type PubSubNotifier struct {
	pub  publisher
	logg *logger.Logger
}

// NewPubSubNotifier wraps a Pub/Sub publisher handle. A nil handle yields a
// notifier that only logs.
func NewPubSubNotifier(pub *pubsub.Publisher, logg *logger.Logger) *PubSubNotifier {
	return &PubSubNotifier{pub: wrapPublisher(pub), logg: logg}
}

// OrderStatusChanged publishes the event in the background.
func (n *PubSubNotifier) OrderStatusChanged(ctx context.Context, event OrderEvent) {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	logCtx := n.eventContext(ctx, event)

	if n.pub == nil {
		n.log(logCtx, "order status changed (notifier disabled)")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logError(logCtx, "encoding order event", err)
		return
	}

	// Detach from the request context so an already-finished request does
	// not cancel the publish.
	go n.publish(context.WithoutCancel(logCtx), event, payload)
}

func (n *PubSubNotifier) publish(ctx context.Context, event OrderEvent, payload []byte) {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_id":   event.EventID.String(),
			"event_type": "order.status_changed",
			"order_id":   event.OrderID.String(),
			"status":     event.Current.String(),
		},
	}

	result := n.pub.Publish(publishCtx, msg)
	if result == nil {
		n.logError(ctx, "publisher returned nil result", nil)
		return
	}
	if _, err := result.Get(publishCtx); err != nil {
		n.logError(ctx, "publishing order event", err)
		return
	}
	n.log(ctx, "order event published")
}

func (n *PubSubNotifier) eventContext(ctx context.Context, event OrderEvent) context.Context {
	if n.logg == nil {
		return ctx
	}
	return n.logg.WithFields(ctx, map[string]any{
		"event_id": event.EventID.String(),
		"order_id": event.OrderID.String(),
		"previous": event.Previous.String(),
		"current":  event.Current.String(),
	})
}

func (n *PubSubNotifier) log(ctx context.Context, msg string) {
	if n.logg != nil {
		n.logg.Info(ctx, msg)
	}
}

func (n *PubSubNotifier) logError(ctx context.Context, msg string, err error) {
	if n.logg != nil {
		n.logg.Error(ctx, msg, err)
	}
}

func wrapPublisher(p *pubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

// LogNotifier writes order events to the structured log only. Used when no
// Pub/Sub project is configured.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) OrderStatusChanged(ctx context.Context, event OrderEvent) {
	if n == nil || n.logg == nil {
		return
	}
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"order_id": event.OrderID.String(),
		"previous": event.Previous.String(),
		"current":  event.Current.String(),
	})
	n.logg.Info(logCtx, "order status changed")
}
