package services

import (
	"context"
	"log"
	"time"

	"github.com/example/flourish/internal/events"
	"github.com/example/flourish/internal/models"
)

// OrderStream is the event stream order events are published to.
const OrderStream = "orders"

// EventForwarder publishes every order event to the message bus.
type EventForwarder struct {
	publisher events.Publisher
	timeout   time.Duration
}

func NewEventForwarder(publisher events.Publisher) *EventForwarder {
	return &EventForwarder{publisher: publisher, timeout: 10 * time.Second}
}

func (f *EventForwarder) OnOrderEvent(event OrderEvent) {
	go f.forward(event)
}

func (f *EventForwarder) forward(event OrderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.publisher.Publish(ctx, OrderStream, event.Order.OrderNumber, event); err != nil {
		log.Printf("[Events] Failed to publish %s for %s: %v", event.Type, event.Order.OrderNumber, err)
	}
}

// OrderArchiver stores a copy of an order outside the primary database.
type OrderArchiver interface {
	SaveOrder(ctx context.Context, order models.Order) error
}

// ArchiveRecorder keeps the archive copy of each order current.
type ArchiveRecorder struct {
	archive OrderArchiver
}

func NewArchiveRecorder(archive OrderArchiver) *ArchiveRecorder {
	return &ArchiveRecorder{archive: archive}
}

func (r *ArchiveRecorder) OnOrderEvent(event OrderEvent) {
	go r.record(event.Order)
}

func (r *ArchiveRecorder) record(order models.Order) {
	if err := r.archive.SaveOrder(context.Background(), order); err != nil {
		log.Printf("[Archive] Failed to store %s: %v", order.OrderNumber, err)
	}
}
