package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicLifecycleEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topic, key, envelope)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

// OutboxRouter выбирает topic по типу агрегата сообщения: события run'ов
// уходят в provisioning topic, события доменов — в lifecycle topic.
type OutboxRouter struct {
	provisioning domain.OutboxPublisher
	lifecycle    domain.OutboxPublisher
}

// NewOutboxRouter создаёт маршрутизирующий паблишер для transactional outbox.
func NewOutboxRouter(producer *Producer) domain.OutboxPublisher {
	return &OutboxRouter{
		provisioning: NewOutboxPublisher(producer, TopicProvisioningEvents),
		lifecycle:    NewOutboxPublisher(producer, TopicLifecycleEvents),
	}
}

func (r *OutboxRouter) Publish(event domain.OutboxMessage) error {
	if event.AggregateType == "provisioning_run" {
		return r.provisioning.Publish(event)
	}
	return r.lifecycle.Publish(event)
}

var _ domain.OutboxPublisher = (*OutboxRouter)(nil)
