package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/entrega-app/entrega-backend/pkg/enums"
)

func TestOrderStatusChangedPublishes(t *testing.T) {
	fake := newFakePublisher()
	n := &PubSubNotifier{pub: fake}

	event := OrderEvent{
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		StoreID:    uuid.New(),
		Previous:   enums.OrderStatusPending,
		Current:    enums.OrderStatusConfirmed,
	}
	n.OrderStatusChanged(context.Background(), event)

	msg := fake.wait(t)
	if msg.Attributes["event_type"] != "order.status_changed" {
		t.Fatalf("unexpected event type %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["order_id"] != event.OrderID.String() {
		t.Fatalf("order id attribute mismatch")
	}
	if msg.Attributes["status"] != "confirmed" {
		t.Fatalf("status attribute should carry the new status, got %q", msg.Attributes["status"])
	}

	var decoded OrderEvent
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded.EventID == uuid.Nil {
		t.Fatalf("event id should be assigned before publish")
	}
	if decoded.Previous != enums.OrderStatusPending || decoded.Current != enums.OrderStatusConfirmed {
		t.Fatalf("unexpected statuses %s -> %s", decoded.Previous, decoded.Current)
	}
}

func TestOrderStatusChangedSurvivesCancelledRequest(t *testing.T) {
	fake := newFakePublisher()
	n := &PubSubNotifier{pub: fake}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.OrderStatusChanged(ctx, OrderEvent{OrderID: uuid.New()})

	fake.wait(t)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	fake := newFakePublisher()
	fake.err = errors.New("topic gone")
	n := &PubSubNotifier{pub: fake}

	// Must not panic or surface the error.
	n.OrderStatusChanged(context.Background(), OrderEvent{OrderID: uuid.New()})
	fake.wait(t)
}

func TestNilPublisherOnlyLogs(t *testing.T) {
	n := NewPubSubNotifier(nil, nil)
	n.OrderStatusChanged(context.Background(), OrderEvent{OrderID: uuid.New()})
}

type fakePublisher struct {
	published chan *pubsub.Message
	err       error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan *pubsub.Message, 1)}
}

func (f *fakePublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	f.published <- msg
	return fakeResult{err: f.err}
}

func (f *fakePublisher) wait(t *testing.T) *pubsub.Message {
	t.Helper()
	select {
	case msg := <-f.published:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("publish never happened")
		return nil
	}
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}
