package publisher

import (
	"context"
	"log"
	"time"

	"github.com/fjod/go_market/internal/order/repository"
	"github.com/segmentio/kafka-go"
)

const orderEventsTopic = "order-events"

// messageWriter is the slice of kafka.Writer the poller uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller drains the outbox_events table and publishes each event
// to Kafka. Orders and their events are committed in one transaction,
// so an event is never lost; at-least-once delivery means consumers
// must deduplicate by order id.
type OutboxPoller struct {
	tick   time.Duration
	repo   repository.OrderRepository
	writer messageWriter
}

func NewOutboxPoller(repo repository.OrderRepository, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  orderEventsTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{tick: time.Second, repo: repo, writer: w}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch outbox events: %v", err)
		return
	}

	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			log.Printf("failed to publish event id = %v with error %v", event.ID, errPublish)
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			log.Printf("failed to mark event as processed id = %v with error %v", event.ID, errMark)
			continue
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for partition ordering
		Value: event.Payload,             // already JSON from the database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
